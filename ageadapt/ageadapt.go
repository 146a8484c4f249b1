// Package ageadapt rewrites approved content to match a child's
// developmental band. It is a stylistic layer, not a safety layer: it is
// deterministic, makes no external calls, and passes malformed input through
// unchanged.
package ageadapt

import (
	"strings"
	"unicode"

	"github.com/finchkit/finch/core"
)

// bandLimit is the target maximum words per sentence for each band. Bands
// absent from the map are left untouched.
var bandLimit = map[core.Band]int{
	core.BandEarlyChildhood:  10,
	core.BandMiddleChildhood: 15,
	core.BandLateChildhood:   20,
}

// simpleWords substitutes vocabulary that trips up younger readers.
var simpleWords = map[string]string{
	"approximately": "about",
	"enormous":      "really big",
	"utilize":       "use",
	"consume":       "eat",
	"numerous":      "many",
	"additionally":  "also",
	"fascinating":   "really cool",
	"demonstrate":   "show",
	"construct":     "build",
	"discover":      "find out",
	"frequently":    "often",
	"primarily":     "mostly",
}

// Adapt rewrites content for the profile's band: vocabulary substitution for
// young bands and sentence splitting when sentences run past the band limit.
// Content that is already within limits, or input that does not parse into
// sentences, comes back unchanged.
func Adapt(content string, profile core.ChildProfile) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	band := profile.Band
	if band == "" {
		band = core.BandForAge(profile.Age)
	}
	limit, capped := bandLimit[band]
	if !capped {
		return content
	}

	text := content
	if profile.Young() {
		text = substituteVocabulary(text)
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return content
	}
	var out []string
	for _, s := range sentences {
		out = append(out, splitLong(s, limit)...)
	}
	return strings.Join(out, " ")
}

// Complexity scores content readability: the mean of average word length and
// a length penalty per sentence. Used by callers to decide whether a rewrite
// round is worth it.
func Complexity(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}
	var letters int
	for _, w := range words {
		letters += len(strings.TrimFunc(w, unicode.IsPunct))
	}
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		sentences = []string{content}
	}
	avgWordLen := float64(letters) / float64(len(words))
	avgSentenceLen := float64(len(words)) / float64(len(sentences))
	return avgWordLen + avgSentenceLen/4
}

// WithinBand reports whether content reads comfortably for the band.
func WithinBand(content string, band core.Band) bool {
	limit, capped := bandLimit[band]
	if !capped {
		return true
	}
	for _, s := range splitSentences(content) {
		if len(strings.Fields(s)) > limit+limit/2 {
			return false
		}
	}
	return true
}

func substituteVocabulary(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		trimmed := strings.TrimFunc(w, unicode.IsPunct)
		replacement, ok := simpleWords[strings.ToLower(trimmed)]
		if !ok {
			continue
		}
		if len(trimmed) > 0 && unicode.IsUpper(rune(trimmed[0])) {
			replacement = strings.ToUpper(replacement[:1]) + replacement[1:]
		}
		words[i] = strings.Replace(w, trimmed, replacement, 1)
	}
	return strings.Join(words, " ")
}

// splitSentences breaks text on terminal punctuation, keeping the
// punctuation with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitLong breaks an over-limit sentence at comma boundaries. Sentences
// without commas are left intact; chopping mid-clause reads worse than a
// long sentence.
func splitLong(sentence string, limit int) []string {
	if len(strings.Fields(sentence)) <= limit {
		return []string{sentence}
	}
	terminal := "."
	if strings.HasSuffix(sentence, "!") || strings.HasSuffix(sentence, "?") {
		terminal = sentence[len(sentence)-1:]
	}
	parts := strings.Split(strings.TrimRight(sentence, ".!?"), ",")
	if len(parts) == 1 {
		return []string{sentence}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p[:1])+p[1:]+terminal)
	}
	if len(out) == 0 {
		return []string{sentence}
	}
	return out
}
