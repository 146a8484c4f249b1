// Package finch is the assembly surface for the safety-first child companion:
// it wires classifiers, the evaluation engine, tools, memory, and alerts into
// an Agent, and hands out per-child session handles.
package finch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/finchkit/finch/alerts"
	geminicls "github.com/finchkit/finch/classifiers/gemini"
	"github.com/finchkit/finch/classifiers/pattern"
	"github.com/finchkit/finch/classifiers/perspective"
	"github.com/finchkit/finch/config"
	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/memory"
	"github.com/finchkit/finch/orchestrator"
	geminiprov "github.com/finchkit/finch/providers/gemini"
	"github.com/finchkit/finch/review"
	"github.com/finchkit/finch/safety"
	"github.com/finchkit/finch/tools"
)

func init() {
	RegisterClassifier("pattern", func(config.Settings, core.Provider) (core.Classifier, error) {
		return pattern.New(), nil
	})
	RegisterClassifier("gemini", func(s config.Settings, p core.Provider) (core.Classifier, error) {
		if p == nil {
			return nil, nil
		}
		var opts []geminicls.Option
		if s.Model != "" {
			opts = append(opts, geminicls.WithModel(s.Model))
		}
		return geminicls.New(p, opts...)
	})
	RegisterClassifier("perspective", func(s config.Settings, _ core.Provider) (core.Classifier, error) {
		if s.PerspectiveAPIKey == "" {
			return nil, nil
		}
		return perspective.New(perspective.WithAPIKey(s.PerspectiveAPIKey))
	})
}

// Agent is the assembled companion: one Agent serves many children through
// per-child Sessions.
type Agent struct {
	orch    *orchestrator.Orchestrator
	store   memory.Store
	dash    *tools.Dashboard
	sink    alerts.Sink
	reviews *review.Queue
}

// NewAgent assembles an Agent from environment settings and the optional
// policy file. Slots without credentials are skipped: with no API keys at
// all the agent still works on the pattern classifier and heuristic intent.
func NewAgent(opts ...AgentOption) (*Agent, error) {
	b := &builder{
		settings: config.FromEnv(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	cfg := b.cfg
	if cfg == nil {
		if b.settings.PolicyFile != "" {
			loaded, err := config.Load(b.settings.PolicyFile)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
	}

	provider := b.provider
	if provider == nil && b.settings.GeminiAPIKey != "" {
		provOpts := []geminiprov.Option{geminiprov.WithAPIKey(b.settings.GeminiAPIKey)}
		if b.settings.Model != "" {
			provOpts = append(provOpts, geminiprov.WithModel(b.settings.Model))
		}
		provider = geminiprov.New(provOpts...)
	}

	var adapters []safety.Adapter
	for _, id := range ClassifierIDs() {
		if !cfg.Classifiers[id].On() {
			continue
		}
		factory, _ := lookupClassifier(id)
		c, err := factory(b.settings, provider)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		adapters = append(adapters, cfg.Adapter(id, c))
	}

	reviews := review.NewQueue()
	engine, err := safety.New(
		cfg.EffectivePolicy(b.settings.StrictMode),
		adapters,
		safety.WithHeuristic(cfg.Heuristic),
		safety.WithReviewQueue(reviews),
	)
	if err != nil {
		return nil, err
	}

	dash := tools.NewDashboard()
	handles, err := toolHandles(cfg.Tools, dash, b.now)
	if err != nil {
		return nil, err
	}
	router, err := tools.NewRouter(handles)
	if err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		store = memory.NewInMemory(0)
	}
	sink := b.sink
	if sink == nil {
		sink = alerts.NewInMemorySink()
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithAlertSink(sink),
		orchestrator.WithAlertBuilder(alerts.NewBuilder(provider)),
		orchestrator.WithIntentClassifier(
			orchestrator.NewIntentClassifier(provider, b.settings.ForceHeuristic)),
	}
	if provider != nil {
		orchOpts = append(orchOpts, orchestrator.WithProvider(provider))
	}
	orch, err := orchestrator.New(engine, router, store, orchOpts...)
	if err != nil {
		return nil, err
	}

	return &Agent{orch: orch, store: store, dash: dash, sink: sink, reviews: reviews}, nil
}

func toolHandles(ids []string, dash *tools.Dashboard, now func() time.Time) ([]core.ToolHandle, error) {
	handles := make([]core.ToolHandle, 0, len(ids))
	for _, id := range ids {
		switch id {
		case "search_educational":
			handles = append(handles, tools.NewSearchTool())
		case "play_music":
			handles = append(handles, tools.NewMusicTool())
		case "analyze_image":
			handles = append(handles, tools.NewImageSafetyTool())
		case "parent_dashboard":
			handles = append(handles, tools.NewParentDashboardTool(dash))
		case "get_environment":
			handles = append(handles, tools.NewEnvironmentTool(now))
		default:
			return nil, core.NewError(core.ErrConfiguration, "unknown tool id "+id)
		}
	}
	return handles, nil
}

// Process runs one request through the full pipeline. Most callers use a
// Session instead; Process exists for servers that manage their own ids.
func (a *Agent) Process(ctx context.Context, req core.Request, profile core.ChildProfile) (*orchestrator.Result, error) {
	return a.orch.Process(ctx, req, profile)
}

// Dashboard exposes the parent-facing event log and settings.
func (a *Agent) Dashboard() *tools.Dashboard { return a.dash }

// Store exposes the session memory for inspection and persistence hooks.
func (a *Agent) Store() memory.Store { return a.store }

// ReviewQueue exposes the human review queue of gray-area evaluations.
func (a *Agent) ReviewQueue() *review.Queue { return a.reviews }

// Session binds a child profile to a generated session id.
func (a *Agent) Session(profile core.ChildProfile) *Session {
	return &Session{agent: a, profile: profile, id: uuid.NewString()}
}

// Session is a per-child conversation handle. Sessions are cheap; create one
// per conversation.
type Session struct {
	agent   *Agent
	profile core.ChildProfile
	id      string
}

// ID returns the generated session id.
func (s *Session) ID() string { return s.id }

// Send processes one child message within the session.
func (s *Session) Send(ctx context.Context, content string) (*orchestrator.Result, error) {
	req := core.NewRequest(s.profile.ChildID, s.id, content)
	return s.agent.orch.Process(ctx, req, s.profile)
}
