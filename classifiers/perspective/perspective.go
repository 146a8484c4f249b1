// Package perspective implements the toxicity-score classifier backed by the
// Comment Analyzer API. Scores are compared against age-banded thresholds:
// the younger the child, the lower a score needs to be before the layer
// flags the content.
package perspective

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/internal/httpclient"
)

type analyzeRequest struct {
	Comment             comment             `json:"comment"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	Languages           []string            `json:"languages,omitempty"`
	DoNotStore          bool                `json:"doNotStore"`
}

type comment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]attributeScore `json:"attributeScores"`
}

type attributeScore struct {
	SummaryScore summaryScore `json:"summaryScore"`
}

type summaryScore struct {
	Value float64 `json:"value"`
}

// attributeCategories maps score attributes onto concern categories.
var attributeCategories = map[string]core.Category{
	"TOXICITY":          core.CategoryHarassment,
	"SEVERE_TOXICITY":   core.CategoryHarassment,
	"IDENTITY_ATTACK":   core.CategoryHateSpeech,
	"INSULT":            core.CategoryHarassment,
	"PROFANITY":         core.CategoryProfanity,
	"THREAT":            core.CategoryViolence,
	"SEXUALLY_EXPLICIT": core.CategorySexual,
}

// bandThreshold is the minimum attribute score that flags content for each
// developmental band.
var bandThreshold = map[core.Band]float64{
	core.BandEarlyChildhood:  0.35,
	core.BandMiddleChildhood: 0.45,
	core.BandLateChildhood:   0.55,
	core.BandEarlyTeen:       0.65,
	core.BandLateTeen:        0.75,
}

// Classifier scores payloads over HTTP.
type Classifier struct {
	opts       options
	httpClient *http.Client
}

// New constructs the toxicity classifier.
func New(opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, core.NewError(core.ErrConfiguration, "perspective classifier requires an API key")
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.New(httpclient.WithTimeout(o.timeout))
	}
	return &Classifier{opts: o, httpClient: o.httpClient}, nil
}

// Name implements core.Classifier.
func (c *Classifier) Name() string { return "perspective" }

// Classify scores the payload and flags the worst attribute that crosses the
// band threshold. Service failures surface as classifier_unavailable.
func (c *Classifier) Classify(ctx context.Context, payload string, ec core.EvalContext) (core.Verdict, error) {
	scores, err := c.analyze(ctx, payload)
	if err != nil {
		return core.Verdict{}, core.NewError(core.ErrClassifierUnavailable,
			"toxicity scoring unavailable", core.WithWrapped(err))
	}

	band := ec.Profile.Band
	if band == "" {
		band = core.BandForAge(ec.Profile.Age)
	}
	threshold := bandThreshold[band]
	if threshold == 0 {
		threshold = bandThreshold[core.BandEarlyChildhood]
	}

	worstAttr := ""
	worstScore := 0.0
	for _, attr := range c.opts.attributes {
		score, ok := scores[attr]
		if !ok {
			continue
		}
		if score.SummaryScore.Value > worstScore {
			worstAttr, worstScore = attr, score.SummaryScore.Value
		}
	}

	if worstAttr != "" && worstScore >= threshold {
		return core.Verdict{
			Label:      core.LabelUnsafe,
			Confidence: worstScore,
			Category:   attributeCategories[worstAttr],
			Severity:   severityFor(worstScore),
			Reason:     fmt.Sprintf("%s score %.2f over band threshold %.2f", strings.ToLower(worstAttr), worstScore, threshold),
		}, nil
	}

	return core.Verdict{
		Label:      core.LabelSafe,
		Confidence: 1 - worstScore,
		Category:   core.CategoryNone,
		Reason:     "all attribute scores under band threshold",
	}, nil
}

func severityFor(score float64) core.Severity {
	switch {
	case score >= 0.9:
		return core.SeverityCritical
	case score >= 0.75:
		return core.SeverityHigh
	case score >= 0.5:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

func (c *Classifier) analyze(ctx context.Context, text string) (map[string]attributeScore, error) {
	attrs := make(map[string]struct{}, len(c.opts.attributes))
	for _, a := range c.opts.attributes {
		attrs[a] = struct{}{}
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(analyzeRequest{
		Comment:             comment{Text: text},
		RequestedAttributes: attrs,
		Languages:           []string{"en"},
		DoNotStore:          true,
	}); err != nil {
		return nil, err
	}

	fullURL := strings.TrimRight(c.opts.baseURL, "/") + "/comments:analyze?key=" + url.QueryEscape(c.opts.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("perspective: %s: %s", resp.Status, data)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode perspective response: %w", err)
	}
	return parsed.AttributeScores, nil
}
