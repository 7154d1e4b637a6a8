package unit_test

import (
	"testing"

	"github.com/packrat-ai/packrat/internal/unit"
)

func TestPartition(t *testing.T) {
	t.Parallel()

	human := func(text string) unit.Unit { return unit.Unit{Kind: unit.KindHuman, Text: text} }
	assistant := func(text string) unit.Unit { return unit.Unit{Kind: unit.KindAssistant, Text: text} }
	tool := func(text string) unit.Unit { return unit.Unit{Kind: unit.KindToolResult, Text: text} }

	tests := []struct {
		name      string
		units     []unit.Unit
		wantTurns int
		wantSizes []int
	}{
		{name: "empty", units: nil, wantTurns: 0},
		{
			name:      "single_exchange",
			units:     []unit.Unit{human("q"), assistant("a")},
			wantTurns: 1,
			wantSizes: []int{2},
		},
		{
			name:      "three_exchanges",
			units:     []unit.Unit{human("1"), assistant("a"), human("2"), assistant("b"), tool("t"), human("3")},
			wantTurns: 3,
			wantSizes: []int{2, 3, 1},
		},
		{
			name:      "leading_non_human",
			units:     []unit.Unit{assistant("orphan"), human("q"), assistant("a")},
			wantTurns: 2,
			wantSizes: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			turns := unit.Partition(tt.units)
			if len(turns) != tt.wantTurns {
				t.Fatalf("Partition() = %d turns, want %d", len(turns), tt.wantTurns)
			}

			total := 0
			for i, turn := range turns {
				if tt.wantSizes != nil && len(turn.Units) != tt.wantSizes[i] {
					t.Errorf("turn %d has %d units, want %d", i, len(turn.Units), tt.wantSizes[i])
				}
				total += len(turn.Units)
			}
			if total != len(tt.units) {
				t.Errorf("turns cover %d units, want %d (partition must be complete)", total, len(tt.units))
			}
		})
	}
}

func TestKindIsValid(t *testing.T) {
	t.Parallel()

	for _, k := range []unit.Kind{
		unit.KindHuman, unit.KindAssistant, unit.KindToolResult, unit.KindShell,
		unit.KindPriorSummary, unit.KindBranchSummary, unit.KindOther,
	} {
		if !k.IsValid() {
			t.Errorf("Kind(%q).IsValid() = false, want true", k)
		}
	}
	if unit.Kind("bogus").IsValid() {
		t.Error(`Kind("bogus").IsValid() = true, want false`)
	}
}
