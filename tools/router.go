package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/obs"
)

const defaultDispatchTimeout = 10 * time.Second

// Router holds the registered tools and dispatches calls by name. Tool
// results are normalized into a core.ToolOutcome; the router never inspects
// content for safety, that stays with the evaluation engine.
type Router struct {
	mu      sync.RWMutex
	tools   map[string]core.ToolHandle
	timeout time.Duration
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithDispatchTimeout bounds each tool call.
func WithDispatchTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.timeout = d }
}

// NewRouter constructs a router over the given tools. Duplicate names are a
// configuration error.
func NewRouter(handles []core.ToolHandle, opts ...RouterOption) (*Router, error) {
	r := &Router{
		tools:   make(map[string]core.ToolHandle, len(handles)),
		timeout: defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, h := range handles {
		if h == nil {
			return nil, core.NewError(core.ErrConfiguration, "nil tool handle")
		}
		if _, dup := r.tools[h.Name()]; dup {
			return nil, core.NewError(core.ErrConfiguration, "duplicate tool: "+h.Name())
		}
		r.tools[h.Name()] = h
	}
	return r, nil
}

// Register adds a tool after construction.
func (r *Router) Register(h core.ToolHandle) error {
	if h == nil {
		return core.NewError(core.ErrConfiguration, "nil tool handle")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[h.Name()]; dup {
		return core.NewError(core.ErrConfiguration, "duplicate tool: "+h.Name())
	}
	r.tools[h.Name()] = h
	return nil
}

// Names lists registered tool names in stable order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the handle for a name.
func (r *Router) Lookup(name string) (core.ToolHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tools[name]
	return h, ok
}

// Dispatch runs the named tool with a per-call timeout and normalizes the
// result. Unknown tools and handler failures surface as tool_error.
func (r *Router) Dispatch(ctx context.Context, name string, args map[string]any, meta core.ToolMeta) (_ *core.ToolOutcome, err error) {
	ctx, recorder := obs.StartRequest(ctx, "tools.Dispatch",
		attribute.String("tool.name", name),
	)
	defer func() {
		if err != nil {
			obs.RecordToolError(name)
		}
		recorder.End(err)
	}()

	handle, ok := r.Lookup(name)
	if !ok {
		return nil, core.NewError(core.ErrToolError, "unknown tool: "+name)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := handle.Execute(callCtx, args, meta)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, core.NewError(core.ErrTimeout, "tool timed out: "+name, core.WithWrapped(err))
		}
		return nil, core.NewError(core.ErrToolError, "tool failed: "+name, core.WithWrapped(err))
	}
	return normalize(name, result)
}

// normalize flattens a tool result into a ToolOutcome.
func normalize(name string, result any) (*core.ToolOutcome, error) {
	switch v := result.(type) {
	case nil:
		return &core.ToolOutcome{Tool: name}, nil
	case *core.ToolOutcome:
		out := *v
		out.Tool = name
		return &out, nil
	case core.ToolOutcome:
		v.Tool = name
		return &v, nil
	case string:
		return &core.ToolOutcome{Tool: name, Content: v}, nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, core.NewError(core.ErrToolError,
				fmt.Sprintf("tool %s returned unencodable result", name), core.WithWrapped(err))
		}
		return &core.ToolOutcome{Tool: name, Content: string(buf)}, nil
	}
}
