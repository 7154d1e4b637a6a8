// Package normalize converts heterogeneous conversation records into the
// canonical text form used for hashing, segmentation, and compression.
//
// Rendering is a pure function: the same unit always produces the same
// text. This determinism is load-bearing, because block hashes are computed
// over rendered text and must match across the background pipeline and the
// swap path.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/packrat-ai/packrat/internal/unit"
)

const (
	// maxToolResultChars caps tool-result and shell-execution bodies before
	// head/tail truncation kicks in.
	maxToolResultChars = 3000

	// maxReasoningChars caps assistant internal-reasoning segments.
	maxReasoningChars = 1500

	// headChars and tailChars define the window kept around a truncation.
	headChars = 1600
	tailChars = 1000

	reasoningHeadChars = 800
	reasoningTailChars = 400

	// imagePlaceholder is substituted for image attachments. The string is
	// fixed so its token cost is fixed too.
	imagePlaceholder = "[image attachment omitted]"

	// keepOpen and keepClose delimit preserve-verbatim spans. Text containing
	// such a span is never truncated.
	keepOpen  = "<keep>"
	keepClose = "</keep>"
)

// Render converts a unit into its canonical tagged text form. Unknown kinds
// fall back to a generic "[kind]: content" rendering. Render never fails.
func Render(u unit.Unit) string {
	switch u.Kind {
	case unit.KindHuman:
		return "[user]: " + u.Text
	case unit.KindAssistant:
		return renderAssistant(u)
	case unit.KindToolResult:
		name := u.ToolName
		if name == "" {
			name = "tool"
		}
		return fmt.Sprintf("[tool-result %s]: %s", name, truncate(u.Text, maxToolResultChars, headChars, tailChars))
	case unit.KindShell:
		return fmt.Sprintf("[shell exit=%d]: %s", u.ExitCode, truncate(u.Text, maxToolResultChars, headChars, tailChars))
	case unit.KindPriorSummary:
		return "[prior-summary]: " + u.Text
	case unit.KindBranchSummary:
		return "[branch-summary]: " + u.Text
	default:
		return fmt.Sprintf("[%s]: %s", u.Kind, u.Text)
	}
}

// Apply returns a copy of units with Text replaced by the canonical
// rendering. IDs and kinds are preserved.
func Apply(units []unit.Unit) []unit.Unit {
	out := make([]unit.Unit, len(units))
	for i, u := range units {
		out[i] = u
		out[i].Text = Render(u)
	}
	return out
}

func renderAssistant(u unit.Unit) string {
	var b strings.Builder
	b.WriteString("[assistant]: ")
	if u.HasImage {
		b.WriteString(imagePlaceholder)
		if u.Text != "" {
			b.WriteString("\n")
		}
	}
	b.WriteString(u.Text)
	if u.Reasoning != "" {
		b.WriteString("\n[reasoning]: ")
		b.WriteString(truncate(u.Reasoning, maxReasoningChars, reasoningHeadChars, reasoningTailChars))
	}
	return b.String()
}

// truncate reduces text to head + marker + tail once it exceeds max bytes.
// Text containing a preserve-verbatim span is returned unchanged.
func truncate(text string, max, head, tail int) string {
	if len(text) <= max {
		return text
	}
	if strings.Contains(text, keepOpen) && strings.Contains(text, keepClose) {
		return text
	}
	// Snap both cut points to rune boundaries. Truncated output still has
	// to be valid UTF-8.
	for head > 0 && !utf8.RuneStart(text[head]) {
		head--
	}
	start := len(text) - tail
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	omitted := start - head
	return text[:head] + fmt.Sprintf("\n...[truncated %d chars]...\n", omitted) + text[start:]
}
