package core

import (
	"context"

	"github.com/finchkit/finch/schema"
)

// ToolHandle is implemented by tool adapters that expose typed metadata to
// the router. Tool results are opaque to the router; output safety is always
// re-delegated to the evaluation engine.
type ToolHandle interface {
	Name() string
	Description() string
	InputSchema() *schema.Schema
	Execute(ctx context.Context, input map[string]any, meta ToolMeta) (any, error)
}

// ToolMeta provides metadata for tool execution.
type ToolMeta struct {
	RequestID string
	SessionID string
	Profile   ChildProfile
}

// Citation points to a supporting source reference in a tool result.
type Citation struct {
	URI     string `json:"uri,omitempty"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ToolOutcome is the normalized result of a dispatched tool call: an opaque
// content blob plus metadata.
type ToolOutcome struct {
	Tool      string         `json:"tool"`
	Content   string         `json:"content"`
	Citations []Citation     `json:"citations,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
