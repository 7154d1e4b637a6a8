package normalize_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/packrat-ai/packrat/internal/normalize"
	"github.com/packrat-ai/packrat/internal/unit"
)

func TestRenderPrefixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		u    unit.Unit
		want string
	}{
		{
			name: "human",
			u:    unit.Unit{Kind: unit.KindHuman, Text: "hello"},
			want: "[user]: hello",
		},
		{
			name: "assistant",
			u:    unit.Unit{Kind: unit.KindAssistant, Text: "hi"},
			want: "[assistant]: hi",
		},
		{
			name: "tool_result_named",
			u:    unit.Unit{Kind: unit.KindToolResult, ToolName: "grep", Text: "out"},
			want: "[tool-result grep]: out",
		},
		{
			name: "tool_result_unnamed",
			u:    unit.Unit{Kind: unit.KindToolResult, Text: "out"},
			want: "[tool-result tool]: out",
		},
		{
			name: "shell",
			u:    unit.Unit{Kind: unit.KindShell, ExitCode: 1, Text: "boom"},
			want: "[shell exit=1]: boom",
		},
		{
			name: "prior_summary",
			u:    unit.Unit{Kind: unit.KindPriorSummary, Text: "old"},
			want: "[prior-summary]: old",
		},
		{
			name: "unknown_kind_generic_fallback",
			u:    unit.Unit{Kind: unit.Kind("weird"), Text: "x"},
			want: "[weird]: x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalize.Render(tt.u); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	t.Parallel()

	u := unit.Unit{Kind: unit.KindToolResult, ToolName: "ls", Text: strings.Repeat("line\n", 2000)}
	if normalize.Render(u) != normalize.Render(u) {
		t.Error("Render() is not deterministic for identical input")
	}
}

func TestRenderTruncatesLongToolOutput(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 10000)
	got := normalize.Render(unit.Unit{Kind: unit.KindToolResult, Text: long})

	if len(got) >= len(long) {
		t.Fatalf("long tool output was not truncated: %d bytes", len(got))
	}
	if !strings.Contains(got, "...[truncated") {
		t.Error("truncated output missing truncation marker")
	}
	// Head and tail survive.
	if !strings.Contains(got, long[:100]) {
		t.Error("truncated output lost its head")
	}
	if !strings.HasSuffix(got, long[len(long)-100:]) {
		t.Error("truncated output lost its tail")
	}
}

func TestRenderTruncationKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	// 3-byte runes put both the head and the tail cut mid-rune unless the
	// truncation snaps to boundaries.
	long := strings.Repeat("界", 1200) // 3600 bytes
	got := normalize.Render(unit.Unit{Kind: unit.KindToolResult, Text: long})

	if len(got) >= len(long) {
		t.Fatalf("long tool output was not truncated: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncated output is not valid UTF-8")
	}
}

func TestRenderPreserveVerbatimExemptsTruncation(t *testing.T) {
	t.Parallel()

	long := "<keep>" + strings.Repeat("x", 10000) + "</keep>"
	got := normalize.Render(unit.Unit{Kind: unit.KindToolResult, Text: long})

	if strings.Contains(got, "...[truncated") {
		t.Error("preserve-verbatim content was truncated")
	}
	if !strings.Contains(got, long) {
		t.Error("preserve-verbatim content was altered")
	}
}

func TestRenderTruncatesLongReasoning(t *testing.T) {
	t.Parallel()

	got := normalize.Render(unit.Unit{
		Kind:      unit.KindAssistant,
		Text:      "answer",
		Reasoning: strings.Repeat("r", 5000),
	})
	if !strings.Contains(got, "...[truncated") {
		t.Error("long reasoning was not truncated")
	}
	if !strings.Contains(got, "[reasoning]: ") {
		t.Error("reasoning tag missing")
	}
}

func TestRenderImagePlaceholder(t *testing.T) {
	t.Parallel()

	a := normalize.Render(unit.Unit{Kind: unit.KindAssistant, HasImage: true, Text: "see"})
	b := normalize.Render(unit.Unit{Kind: unit.KindAssistant, HasImage: true, Text: "look"})

	if !strings.Contains(a, "[image attachment omitted]") {
		t.Fatalf("image placeholder missing: %q", a)
	}
	// The placeholder is a fixed string, so its token cost is fixed.
	if strings.Count(a, "[image attachment omitted]") != strings.Count(b, "[image attachment omitted]") {
		t.Error("image placeholder varies between renders")
	}
}

func TestApplyPreservesIDs(t *testing.T) {
	t.Parallel()

	in := []unit.Unit{
		{Kind: unit.KindHuman, ID: "u1", Text: "q"},
		{Kind: unit.KindAssistant, ID: "u2", Text: "a"},
	}
	out := normalize.Apply(in)

	if len(out) != 2 {
		t.Fatalf("Apply() returned %d units, want 2", len(out))
	}
	for i := range out {
		if out[i].ID != in[i].ID {
			t.Errorf("unit %d lost its ID: got %q, want %q", i, out[i].ID, in[i].ID)
		}
		if out[i].Text == in[i].Text {
			t.Errorf("unit %d text was not rewritten to canonical form", i)
		}
	}
	if in[0].Text != "q" {
		t.Error("Apply() mutated its input")
	}
}
