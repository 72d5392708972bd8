package security

import (
	"fmt"
	"regexp"
	"strings"

	"morvo/internal/config"
)

// Sanitizer holds the compiled PII patterns. It is immutable after
// construction and shared by all requests; per-turn placeholder state
// lives in a Redaction.
type Sanitizer struct {
	filters []piiFilter
	enabled bool
}

type piiFilter struct {
	name    string
	pattern *regexp.Regexp
	prefix  string
}

// Specific patterns run first so the loose phone pattern does not eat
// card numbers or SSNs.
var defaultFilters = []struct {
	name    string
	pattern string
	prefix  string
}{
	{"email", `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "EMAIL"},
	{"card", `\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`, "CARD"},
	{"ssn", `\b\d{3}-\d{2}-\d{4}\b`, "SSN"},
	{"ip", `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, "IP"},
	{"phone", `(?:\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`, "PHONE"},
}

// NewSanitizer creates a PII sanitizer from config.
func NewSanitizer(cfg config.PIIFilterConfig) *Sanitizer {
	s := &Sanitizer{enabled: cfg.Enabled}

	enableMap := map[string]bool{
		"email": cfg.FilterEmails,
		"phone": cfg.FilterPhones,
		"card":  cfg.FilterCards,
		"ip":    cfg.FilterIPs,
		"ssn":   cfg.FilterSSN,
	}

	for _, f := range defaultFilters {
		if enableMap[f.name] {
			s.filters = append(s.filters, piiFilter{
				name:    f.name,
				pattern: regexp.MustCompile(f.pattern),
				prefix:  f.prefix,
			})
		}
	}

	return s
}

// Enabled reports whether any redaction will happen.
func (s *Sanitizer) Enabled() bool {
	return s != nil && s.enabled && len(s.filters) > 0
}

// NewTurn starts a redaction scope for one request. The returned value is
// not safe for concurrent use and must not outlive the request.
func (s *Sanitizer) NewTurn() *Redaction {
	return &Redaction{
		sanitizer: s,
		byValue:   make(map[string]string),
		counter:   make(map[string]int),
	}
}

// Redaction maps placeholders to original values within one turn.
// Placeholders are numbered in order of first appearance, so identical
// input produces identical output.
type Redaction struct {
	sanitizer *Sanitizer
	pairs     []placeholderPair
	byValue   map[string]string
	counter   map[string]int
}

type placeholderPair struct {
	placeholder string
	original    string
}

// Sanitize replaces PII in text with placeholders.
func (r *Redaction) Sanitize(text string) string {
	if !r.sanitizer.Enabled() {
		return text
	}

	result := text
	for _, f := range r.sanitizer.filters {
		result = f.pattern.ReplaceAllStringFunc(result, func(match string) string {
			if placeholder, ok := r.byValue[match]; ok {
				return placeholder
			}
			r.counter[f.prefix]++
			placeholder := fmt.Sprintf("[%s_%d]", f.prefix, r.counter[f.prefix])
			r.byValue[match] = placeholder
			r.pairs = append(r.pairs, placeholderPair{placeholder, match})
			return placeholder
		})
	}
	return result
}

// Restore replaces placeholders back with original values.
func (r *Redaction) Restore(text string) string {
	if len(r.pairs) == 0 {
		return text
	}
	result := text
	for _, p := range r.pairs {
		result = strings.ReplaceAll(result, p.placeholder, p.original)
	}
	return result
}

// Count returns the number of distinct values redacted so far.
func (r *Redaction) Count() int {
	return len(r.pairs)
}
