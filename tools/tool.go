// Package tools provides typed tool definitions, the dispatch router, and
// the built-in child-facing tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/finchkit/finch/core"
	jsonschema "github.com/finchkit/finch/internal/jsonschema"
	"github.com/finchkit/finch/schema"
)

// ToolFunc is the handler invoked when the planner calls the tool.
type ToolFunc[I any, O any] func(ctx context.Context, input I, meta core.ToolMeta) (O, error)

// Tool is a typed tool definition. It implements core.ToolHandle directly:
// the router hands it raw map input, which is validated against the derived
// input schema and decoded into I before the handler runs.
type Tool[I any, O any] struct {
	name        string
	description string
	fn          ToolFunc[I, O]

	once        sync.Once
	inputSchema *schema.Schema
}

// New constructs a typed tool. The input schema is derived lazily from I's
// struct tags on first use.
func New[I any, O any](name, description string, fn ToolFunc[I, O]) *Tool[I, O] {
	return &Tool[I, O]{name: name, description: description, fn: fn}
}

// Name returns the tool name.
func (t *Tool[I, O]) Name() string { return t.name }

// Description returns the description.
func (t *Tool[I, O]) Description() string { return t.description }

// InputSchema returns the JSON schema for the input type.
func (t *Tool[I, O]) InputSchema() *schema.Schema {
	t.once.Do(func() {
		in, err := jsonschema.Derive[I]()
		if err != nil {
			panic(fmt.Sprintf("derive input schema for tool %s: %v", t.name, err))
		}
		t.inputSchema = in
	})
	return t.inputSchema
}

// Execute validates and decodes the raw input, then runs the handler.
// Schema violations surface as tool_error before the handler is invoked.
func (t *Tool[I, O]) Execute(ctx context.Context, input map[string]any, meta core.ToolMeta) (any, error) {
	if err := validateInput(t.InputSchema(), input); err != nil {
		return nil, err
	}
	var args I
	if err := decodeInput(input, &args); err != nil {
		return nil, core.NewError(core.ErrToolError, "decode tool input", core.WithWrapped(err))
	}
	result, err := t.fn(ctx, args, meta)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateInput enforces the derived schema's required fields and enum
// constraints. Unknown extra keys pass through; the decoder drops them.
func validateInput(s *schema.Schema, input map[string]any) error {
	if s == nil || s.Type != "object" {
		return nil
	}
	for _, name := range s.Required {
		if _, ok := input[name]; !ok {
			return core.NewError(core.ErrToolError, "missing required field "+name)
		}
	}
	for name, prop := range s.Properties {
		if prop == nil || len(prop.Enum) == 0 {
			continue
		}
		raw, ok := input[name]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		if !enumAllows(prop.Enum, value) {
			return core.NewError(core.ErrToolError,
				fmt.Sprintf("field %s: %q is not an accepted value", name, value))
		}
	}
	return nil
}

func enumAllows(enum []any, value string) bool {
	for _, candidate := range enum {
		if s, ok := candidate.(string); ok && s == value {
			return true
		}
	}
	return false
}

func decodeInput[M any](data map[string]any, target *M) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal tool input: %w", err)
	}
	if err := json.Unmarshal(buf, target); err != nil {
		return fmt.Errorf("unmarshal tool input: %w", err)
	}
	return nil
}
