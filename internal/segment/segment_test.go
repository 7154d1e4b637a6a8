package segment_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/packrat-ai/packrat/internal/segment"
	"github.com/packrat-ai/packrat/internal/unit"
)

func human(id, text string) unit.Unit {
	return unit.Unit{Kind: unit.KindHuman, ID: id, Text: text}
}

func assistant(id, text string) unit.Unit {
	return unit.Unit{Kind: unit.KindAssistant, ID: id, Text: text}
}

// textOfTokens builds a string whose estimate is exactly n tokens.
func textOfTokens(n int) string {
	return strings.Repeat("a", n*4)
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 4000), 1000},
	}
	for _, tt := range tests {
		if got := segment.EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestSegmentThreeSmallTurns(t *testing.T) {
	t.Parallel()

	// Three turns, each well under the ceiling, become exactly three blocks.
	units := []unit.Unit{
		human("1", textOfTokens(100)), assistant("2", textOfTokens(200)),
		human("3", textOfTokens(100)), assistant("4", textOfTokens(200)),
		human("5", textOfTokens(100)), assistant("6", textOfTokens(200)),
	}

	blocks := segment.Segment(units, 4000)
	if len(blocks) != 3 {
		t.Fatalf("Segment() = %d blocks, want 3", len(blocks))
	}
	wantFirst := []string{"1", "3", "5"}
	for i, b := range blocks {
		if b.FirstUnitID != wantFirst[i] {
			t.Errorf("block %d FirstUnitID = %q, want %q", i, b.FirstUnitID, wantFirst[i])
		}
	}
}

func TestSegmentOversizedTurnSplits(t *testing.T) {
	t.Parallel()

	// One turn of ~9000 tokens with a 4000 ceiling yields at least 3 blocks.
	units := []unit.Unit{
		human("1", textOfTokens(3000)),
		assistant("2", textOfTokens(3000)),
		assistant("3", textOfTokens(3000)),
	}

	blocks := segment.Segment(units, 4000)
	if len(blocks) < 3 {
		t.Fatalf("Segment() = %d blocks, want at least 3", len(blocks))
	}
	for i, b := range blocks {
		if b.Tokens > 4000 {
			t.Errorf("block %d estimate %d exceeds ceiling 4000", i, b.Tokens)
		}
	}
}

func TestSegmentHardSplitsOversizedUnit(t *testing.T) {
	t.Parallel()

	// A single unit over the ceiling is hard-split; fragments inherit the
	// unit's identifier so cut-point math stays correct.
	lines := strings.Repeat(strings.Repeat("b", 79)+"\n", 500) // ~40000 chars
	units := []unit.Unit{human("big", lines)}

	blocks := segment.Segment(units, 4000)
	if len(blocks) < 2 {
		t.Fatalf("oversized unit produced %d blocks, want at least 2", len(blocks))
	}

	var rebuilt strings.Builder
	for i, b := range blocks {
		if b.FirstUnitID != "big" {
			t.Errorf("fragment %d FirstUnitID = %q, want %q", i, b.FirstUnitID, "big")
		}
		if b.Tokens > 4000 {
			t.Errorf("fragment %d estimate %d exceeds ceiling", i, b.Tokens)
		}
		rebuilt.WriteString(b.Text)
	}
	if rebuilt.String() != units[0].Text {
		t.Error("hard-split fragments do not reassemble to the original text")
	}
	// Split points snap to newlines within the tolerance window.
	for i, b := range blocks[:len(blocks)-1] {
		if !strings.HasSuffix(b.Text, "\n") {
			t.Errorf("fragment %d does not end on a newline boundary", i)
		}
	}
}

func TestSegmentHardSplitKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	// No newlines anywhere, so the tolerance window never finds one and
	// the fixed-size cut would land mid-rune without boundary snapping.
	text := strings.Repeat("世", 1500) // 4500 bytes of 3-byte runes
	units := []unit.Unit{human("cjk", text)}

	blocks := segment.Segment(units, 100)
	if len(blocks) < 2 {
		t.Fatalf("oversized unit produced %d blocks, want at least 2", len(blocks))
	}

	var rebuilt strings.Builder
	for i, b := range blocks {
		if !utf8.ValidString(b.Text) {
			t.Errorf("fragment %d is not valid UTF-8", i)
		}
		rebuilt.WriteString(b.Text)
	}
	if rebuilt.String() != text {
		t.Error("hard-split fragments do not reassemble to the original text")
	}
}

func TestSegmentDropsSummaryUnits(t *testing.T) {
	t.Parallel()

	units := []unit.Unit{
		{Kind: unit.KindPriorSummary, Text: "old summary"},
		human("1", "question"),
		{Kind: unit.KindBranchSummary, Text: "branch"},
		assistant("2", "answer"),
	}

	blocks := segment.Segment(units, 4000)
	if len(blocks) != 1 {
		t.Fatalf("Segment() = %d blocks, want 1", len(blocks))
	}
	if strings.Contains(blocks[0].Text, "old summary") || strings.Contains(blocks[0].Text, "branch") {
		t.Error("summary units leaked into a block")
	}

	summaries := segment.SummaryUnits(units)
	if len(summaries) != 2 {
		t.Fatalf("SummaryUnits() = %d, want 2", len(summaries))
	}
}

// TestSegmentHashEqualityAcrossPaths verifies the load-bearing invariant:
// the flat-list path (no identifiers) and the indexed path (with
// identifiers) produce identical hashes for identical underlying text.
func TestSegmentHashEqualityAcrossPaths(t *testing.T) {
	t.Parallel()

	text1, text2 := textOfTokens(500), textOfTokens(700)

	withIDs := []unit.Unit{human("a1", text1), assistant("a2", text2)}
	withoutIDs := []unit.Unit{
		{Kind: unit.KindHuman, Text: text1},
		{Kind: unit.KindAssistant, Text: text2},
	}

	a := segment.Segment(withIDs, 4000)
	b := segment.Segment(withoutIDs, 4000)

	if len(a) != len(b) {
		t.Fatalf("paths produced %d and %d blocks", len(a), len(b))
	}
	for i := range a {
		if a[i].Hash != b[i].Hash {
			t.Errorf("block %d hash mismatch: %s vs %s", i, a[i].Hash, b[i].Hash)
		}
	}
}

func TestHashTextStable(t *testing.T) {
	t.Parallel()

	if segment.HashText("same") != segment.HashText("same") {
		t.Error("HashText is not stable")
	}
	if segment.HashText("one") == segment.HashText("two") {
		t.Error("distinct texts hash equal")
	}
	if got := len(segment.ShortHash(segment.HashText("x"))); got != 12 {
		t.Errorf("ShortHash length = %d, want 12", got)
	}
}
