// Package redact scrubs secret material from text before it leaves the
// machine. Raw conversation text routinely contains pasted credentials; the
// compression and narrative paths both run it through a Redactor before
// building a service request.
package redact

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder is the replacement string for redacted secrets. It matches
// the marker the compression prompt instructs the service to use, so
// already-redacted text survives a compression round trip unchanged.
const Placeholder = "[REDACTED]"

// Redactor replaces secret values using regex patterns for known credential
// formats plus literal values registered at runtime. Safe for concurrent
// use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// New creates a Redactor pre-loaded with patterns for common API key
// formats.
func New() *Redactor {
	return &Redactor{patterns: defaultPatterns()}
}

// AddLiteral registers a literal secret value to redact on sight. Empty
// strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces every known secret pattern and literal value in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, Placeholder)
		}
	}
	return s
}

func defaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic keys first: the generic sk- pattern would otherwise eat
		// the prefix and leave the rest behind.
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		// GitHub tokens.
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// AWS access key IDs.
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		// Slack bot and user tokens.
		regexp.MustCompile(`xoxb-[0-9]+-[a-zA-Z0-9]+`),
		regexp.MustCompile(`xoxp-[0-9]+-[a-zA-Z0-9]+`),
	}
}
