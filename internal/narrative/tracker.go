// Package narrative maintains the evolving working-memory document. It runs
// once per completed turn, independently of the block/cache pipeline, and
// survives compaction because the document lives outside the transcript.
// Best-effort only: failures are logged and swallowed, never surfaced.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/packrat-ai/packrat/internal/provider"
	"github.com/packrat-ai/packrat/internal/redact"
	"github.com/packrat-ai/packrat/internal/storage"
	"github.com/packrat-ai/packrat/internal/unit"
)

const (
	// DefaultWordBudget caps the document size.
	DefaultWordBudget = 600

	// recentUnitWindow bounds how many of the latest raw units feed each
	// update.
	recentUnitWindow = 12

	// maxUnitChars bounds each unit's contribution to the update prompt.
	maxUnitChars = 1200

	maxOutputTokens = 1500
)

// Tracker evolves the narrative document.
type Tracker struct {
	completer  provider.Completer
	model      string
	path       string
	wordBudget int
	redactor   *redact.Redactor
	logger     *slog.Logger
}

// New creates a tracker writing to path. redactor may be nil.
func New(completer provider.Completer, model, path string, wordBudget int, redactor *redact.Redactor, logger *slog.Logger) *Tracker {
	if wordBudget <= 0 {
		wordBudget = DefaultWordBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		completer:  completer,
		model:      model,
		path:       path,
		wordBudget: wordBudget,
		redactor:   redactor,
		logger:     logger.With("component", "narrative"),
	}
}

// Read returns the current document, or the empty string if none exists.
func (t *Tracker) Read() (string, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("narrative: read %s: %w", t.path, err)
	}
	return string(data), nil
}

// Update evolves the document from the most recent raw units. Any failure
// is logged and swallowed: this path must never abort the turn or the
// compaction path.
func (t *Tracker) Update(ctx context.Context, units []unit.Unit) {
	if t.completer == nil || !t.completer.Available() {
		return
	}

	current, err := t.Read()
	if err != nil {
		t.logger.Warn("narrative read failed", "error", err)
		current = ""
	}

	window := recentWindow(units, recentUnitWindow)
	if len(window) == 0 {
		return
	}

	evolved, err := t.completer.Complete(ctx, provider.Request{
		Model:     t.model,
		System:    fmt.Sprintf(systemPrompt, t.wordBudget),
		User:      t.buildUserPrompt(current, window),
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		t.logger.Warn("narrative update failed", "error", err)
		return
	}

	if err := storage.WriteFileAtomic(t.path, []byte(evolved)); err != nil {
		t.logger.Warn("narrative write failed", "error", err)
	}
}

// recentWindow keeps the last n human and assistant units.
func recentWindow(units []unit.Unit, n int) []unit.Unit {
	var out []unit.Unit
	for _, u := range units {
		if u.Kind == unit.KindHuman || u.Kind == unit.KindAssistant {
			out = append(out, u)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func (t *Tracker) buildUserPrompt(current string, window []unit.Unit) string {
	var b strings.Builder
	b.WriteString("Existing working memory document:\n")
	if current == "" {
		b.WriteString("(empty — create the initial document)\n")
	} else {
		b.WriteString(current)
		b.WriteString("\n")
	}
	b.WriteString("\nLatest conversation turns:\n")
	for _, u := range window {
		text := u.Text
		if t.redactor != nil {
			text = t.redactor.Redact(text)
		}
		if len(text) > maxUnitChars {
			text = text[:maxUnitChars] + "…"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", u.Kind, text)
	}
	return b.String()
}
