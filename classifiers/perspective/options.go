package perspective

import (
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	attributes []string
}

func defaultOptions() options {
	return options{
		baseURL: "https://commentanalyzer.googleapis.com/v1alpha1",
		timeout: 5 * time.Second,
		attributes: []string{
			"TOXICITY",
			"SEVERE_TOXICITY",
			"IDENTITY_ATTACK",
			"INSULT",
			"PROFANITY",
			"THREAT",
			"SEXUALLY_EXPLICIT",
		},
	}
}

func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithAttributes overrides the requested score attributes.
func WithAttributes(attrs ...string) Option {
	return func(o *options) { o.attributes = attrs }
}
