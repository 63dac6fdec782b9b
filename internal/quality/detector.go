// Package quality decides whether a generated answer is weak enough to be
// retried with web search results.
package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Reason names the rule that asked for escalation.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonUncertainty    Reason = "uncertainty"
	ReasonTemporal       Reason = "temporal"
	ReasonNoContextShort Reason = "no_context_short"
)

// MinAnswerLength is the trimmed length, in characters, below which an
// answer counts as short.
const MinAnswerLength = 50

// DefaultUncertainty are answer phrases that signal missing knowledge.
var DefaultUncertainty = []string{
	"diese information",
	"nicht im dokument",
	"kann ich nicht",
	"weiß ich nicht",
	"keine information",
	"nicht verfügbar",
	"nicht bekannt",
	"ich habe keine",
	"keine daten",
	"nicht enthalten",
	"i don't know",
	"i do not know",
	"i cannot",
	"no information",
	"not available",
	"not mentioned",
}

// DefaultTemporal are question terms that ask for current data.
var DefaultTemporal = []string{
	"aktuell",
	"heute",
	"jetzt",
	"momentan",
	"derzeit",
	"gegenwärtig",
	"neueste",
	"latest",
	"today",
	"currently",
	"right now",
}

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)

// Detector applies the escalation rules in order:
// uncertainty in the answer, a temporal question without enough local
// grounding, and a short answer without documents.
type Detector struct {
	uncertainty []string
	temporal    []string
}

// New returns a detector. Nil lexicons select the defaults.
func New(uncertainty, temporal []string) *Detector {
	if uncertainty == nil {
		uncertainty = DefaultUncertainty
	}
	if temporal == nil {
		temporal = DefaultTemporal
	}
	return &Detector{uncertainty: lower(uncertainty), temporal: lower(temporal)}
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// NeedsEscalation reports whether a web search should be tried.
func (d *Detector) NeedsEscalation(question, answer string, hasDocuments bool) bool {
	return d.Reason(question, answer, hasDocuments) != ReasonNone
}

// Reason returns the first rule that fires, or ReasonNone.
func (d *Detector) Reason(question, answer string, hasDocuments bool) Reason {
	a := strings.ToLower(answer)
	if containsAny(a, d.uncertainty) {
		return ReasonUncertainty
	}
	short := utf8.RuneCountInString(strings.TrimSpace(answer)) < MinAnswerLength
	if d.isTemporal(question) && (!hasDocuments || short) {
		return ReasonTemporal
	}
	if !hasDocuments && short {
		return ReasonNoContextShort
	}
	return ReasonNone
}

func (d *Detector) isTemporal(question string) bool {
	q := strings.ToLower(question)
	return containsAny(q, d.temporal) || yearPattern.MatchString(q)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
