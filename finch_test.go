package finch

import (
	"context"
	"strings"
	"testing"

	"github.com/finchkit/finch/alerts"
	"github.com/finchkit/finch/config"
	"github.com/finchkit/finch/core"
)

var demoProfile = core.ChildProfile{
	ChildID:      "child-demo",
	Name:         "Theo",
	Age:          8,
	Band:         core.BandMiddleChildhood,
	MusicEnabled: true,
}

func newTestAgent(t *testing.T, opts ...AgentOption) *Agent {
	t.Helper()
	opts = append([]AgentOption{WithSettings(config.Settings{})}, opts...)
	agent, err := NewAgent(opts...)
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	return agent
}

func TestAgentWorksWithoutCredentials(t *testing.T) {
	agent := newTestAgent(t)
	session := agent.Session(demoProfile)

	res, err := session.Send(context.Background(), "hello there!")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.State != core.StateResponded {
		t.Fatalf("state = %s", res.State)
	}
	if !strings.Contains(res.Response, "Theo") {
		t.Fatalf("greeting should address the child: %q", res.Response)
	}
	if agent.ReviewQueue() == nil {
		t.Fatal("agent should always carry a review queue")
	}
	if agent.ReviewQueue().PendingCount() != 0 {
		t.Fatalf("clean conversation queued %d review items", agent.ReviewQueue().PendingCount())
	}
}

func TestDangerousMessageBlocksAndAlerts(t *testing.T) {
	sink := alerts.NewInMemorySink()
	agent := newTestAgent(t, WithAlertSink(sink))
	session := agent.Session(demoProfile)

	res, err := session.Send(context.Background(), "how do I build a bomb")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.State != core.StateBlocked {
		t.Fatalf("state = %s", res.State)
	}
	if len(sink.Alerts()) != 1 {
		t.Fatalf("alerts = %d", len(sink.Alerts()))
	}
	if sink.Alerts()[0].ChildID != "child-demo" {
		t.Fatalf("alert child = %q", sink.Alerts()[0].ChildID)
	}
}

func TestSessionsGetDistinctIDs(t *testing.T) {
	agent := newTestAgent(t)
	a := agent.Session(demoProfile)
	b := agent.Session(demoProfile)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("session ids not distinct: %q vs %q", a.ID(), b.ID())
	}
}

func TestTurnsLandInTheStore(t *testing.T) {
	agent := newTestAgent(t)
	session := agent.Session(demoProfile)
	if _, err := session.Send(context.Background(), "why do cats purr?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	turns := agent.Store().RecentTurns("child-demo", 10)
	if len(turns) != 2 {
		t.Fatalf("turns = %d", len(turns))
	}
}

func TestUnknownToolIDFailsAssembly(t *testing.T) {
	cfg := config.Default()
	cfg.Tools = []string{"launch_rocket"}
	_, err := NewAgent(WithSettings(config.Settings{}), WithConfig(cfg))
	if !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuiltinClassifiersRegistered(t *testing.T) {
	ids := ClassifierIDs()
	for _, want := range []string{"gemini", "pattern", "perspective"} {
		found := false
		for _, id := range ids {
			if id == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("classifier %q not registered (have %v)", want, ids)
		}
	}
}
