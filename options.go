package finch

import (
	"time"

	"github.com/finchkit/finch/alerts"
	"github.com/finchkit/finch/config"
	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/memory"
)

type builder struct {
	settings config.Settings
	cfg      *config.File
	provider core.Provider
	store    memory.Store
	sink     alerts.Sink
	now      func() time.Time
}

// AgentOption configures NewAgent.
type AgentOption func(*builder)

// WithSettings overrides the environment-derived settings.
func WithSettings(s config.Settings) AgentOption {
	return func(b *builder) { b.settings = s }
}

// WithConfig injects an already-loaded policy document, bypassing
// Settings.PolicyFile.
func WithConfig(cfg *config.File) AgentOption {
	return func(b *builder) { b.cfg = cfg }
}

// WithProvider injects a generative backend, replacing the one built from
// API-key settings.
func WithProvider(p core.Provider) AgentOption {
	return func(b *builder) { b.provider = p }
}

// WithStore replaces the in-memory session store.
func WithStore(s memory.Store) AgentOption {
	return func(b *builder) { b.store = s }
}

// WithAlertSink replaces the in-memory parent alert sink.
func WithAlertSink(s alerts.Sink) AgentOption {
	return func(b *builder) { b.sink = s }
}

// WithClock fixes the time source used by the environment tool.
func WithClock(now func() time.Time) AgentOption {
	return func(b *builder) { b.now = now }
}
