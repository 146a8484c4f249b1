// Package config loads runtime settings from the environment and the
// optional YAML policy file. Every validation failure surfaces as a typed
// configuration error at load time; nothing is deferred to request time.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/obs"
	"github.com/finchkit/finch/safety"
)

// Settings holds environment-sourced runtime knobs. Secrets stay in the
// environment; structural policy lives in the YAML file.
type Settings struct {
	GeminiAPIKey      string
	PerspectiveAPIKey string
	Model             string

	// ForceHeuristic disables provider-backed intent classification even
	// when an API key is present.
	ForceHeuristic bool

	// StrictMode halves the default confidence thresholds loaded from the
	// policy file.
	StrictMode bool

	PolicyFile string

	OTelExporter obs.ExporterType
	OTelEndpoint string
}

// FromEnv reads Settings from the process environment.
func FromEnv() Settings {
	return Settings{
		GeminiAPIKey:      firstEnv("FINCH_GEMINI_API_KEY", "GEMINI_API_KEY"),
		PerspectiveAPIKey: firstEnv("FINCH_PERSPECTIVE_API_KEY", "PERSPECTIVE_API_KEY"),
		Model:             os.Getenv("FINCH_MODEL"),
		ForceHeuristic:    boolEnv("FINCH_FORCE_HEURISTIC"),
		StrictMode:        boolEnv("FINCH_STRICT"),
		PolicyFile:        os.Getenv("FINCH_POLICY_FILE"),
		OTelExporter:      exporterEnv("FINCH_OTEL_EXPORTER"),
		OTelEndpoint:      os.Getenv("FINCH_OTLP_ENDPOINT"),
	}
}

// ObsOptions maps Settings onto observability initialization options.
func (s Settings) ObsOptions() obs.Options {
	opts := obs.DefaultOptions()
	opts.ServiceName = "finch"
	opts.Exporter = s.OTelExporter
	opts.Endpoint = s.OTelEndpoint
	return opts
}

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return core.NewError(core.ErrConfiguration, "invalid duration "+node.Value, core.WithWrapped(err))
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ClassifierConfig configures one classifier slot from the policy file.
type ClassifierConfig struct {
	Enabled      *bool    `yaml:"enabled"`
	Timeout      Duration `yaml:"timeout"`
	RetryTimeout Duration `yaml:"retry_timeout"`
}

// On reports whether the slot is enabled. Absent means enabled.
func (c ClassifierConfig) On() bool { return c.Enabled == nil || *c.Enabled }

// File is the YAML policy document.
type File struct {
	Policy      safety.Policy               `yaml:"policy"`
	Heuristic   safety.Heuristic            `yaml:"heuristic"`
	Classifiers map[string]ClassifierConfig `yaml:"classifiers"`
	Tools       []string                    `yaml:"tools"`
}

// KnownClassifiers are the classifier ids the engine can materialize.
var KnownClassifiers = []string{"pattern", "gemini", "perspective"}

// KnownTools are the built-in capability ids the router can register.
var KnownTools = []string{
	"search_educational", "play_music", "analyze_image",
	"parent_dashboard", "get_environment",
}

// Default returns the policy document used when no file is configured.
func Default() *File {
	return &File{
		Policy:    safety.DefaultPolicy(),
		Heuristic: safety.DefaultHeuristic(),
		Tools:     append([]string(nil), KnownTools...),
	}
}

// Load reads and validates the YAML policy document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(core.ErrConfiguration, "read policy file", core.WithWrapped(err))
	}
	return Parse(data)
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, core.NewError(core.ErrConfiguration, "decode policy file", core.WithWrapped(err))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate rejects malformed documents: bad thresholds, unknown classifier
// or tool ids, negative timeouts.
func (f *File) Validate() error {
	if err := f.Policy.Validate(); err != nil {
		return err
	}
	for id, cc := range f.Classifiers {
		if !contains(KnownClassifiers, id) {
			return core.NewError(core.ErrConfiguration, "unknown classifier id "+strconv.Quote(id))
		}
		if cc.Timeout < 0 || cc.RetryTimeout < 0 {
			return core.NewError(core.ErrConfiguration, "negative timeout for classifier "+id)
		}
	}
	for _, id := range f.Tools {
		if !contains(KnownTools, id) {
			return core.NewError(core.ErrConfiguration, "unknown tool id "+strconv.Quote(id))
		}
	}
	return nil
}

// Adapter builds the engine adapter for one configured classifier.
func (f *File) Adapter(id string, c core.Classifier) safety.Adapter {
	cc := f.Classifiers[id]
	return safety.Adapter{
		Classifier:   c,
		Timeout:      cc.Timeout.Std(),
		RetryTimeout: cc.RetryTimeout.Std(),
	}
}

// EffectivePolicy applies strict mode on top of the loaded policy: strict
// halves every confidence threshold, making blocks easier to trigger.
func (f *File) EffectivePolicy(strict bool) safety.Policy {
	if !strict {
		return f.Policy
	}
	p := f.Policy
	p.DefaultThreshold /= 2
	categories := make(map[core.Category]safety.CategoryPolicy, len(p.Categories))
	for cat, cp := range p.Categories {
		cp.Threshold /= 2
		categories[cat] = cp
	}
	p.Categories = categories
	return p
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func exporterEnv(key string) obs.ExporterType {
	switch strings.ToLower(os.Getenv(key)) {
	case "otlp":
		return obs.ExporterOTLP
	case "stdout":
		return obs.ExporterStdout
	default:
		return obs.ExporterNone
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
