// Package unit defines the canonical conversational record type shared by
// the normalizer, segmenter, and swap controller.
package unit

// Kind identifies the role of a conversational record. The set is closed:
// unknown inputs map to KindOther rather than producing new kinds.
type Kind string

const (
	KindHuman         Kind = "human"
	KindAssistant     Kind = "assistant"
	KindToolResult    Kind = "tool-result"
	KindShell         Kind = "shell-execution"
	KindPriorSummary  Kind = "prior-summary"
	KindBranchSummary Kind = "branch-summary"
	KindOther         Kind = "other"
)

// IsValid reports whether k is one of the defined kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindHuman, KindAssistant, KindToolResult, KindShell,
		KindPriorSummary, KindBranchSummary, KindOther:
		return true
	}
	return false
}

// Unit is one normalized conversational record. Each kind carries only the
// fields relevant to it; unrelated fields stay zero.
type Unit struct {
	Kind Kind

	// ID is the stable transcript identifier when the unit was sourced from
	// a persisted transcript entry. Empty for units seen only in-flight.
	ID string

	// Text is the raw content before normalization.
	Text string

	// ToolName is set for tool-result units.
	ToolName string

	// ExitCode is set for shell-execution units.
	ExitCode int

	// Reasoning is the assistant's internal reasoning text, if any.
	Reasoning string

	// HasImage marks units whose content included an image attachment.
	HasImage bool
}

// Turn is a maximal run of units starting with a human unit and including
// every subsequent non-human unit up to the next human unit. Turns partition
// the unit sequence in order.
type Turn struct {
	Units []Unit
}

// Partition splits units into turns at human-unit boundaries. Units that
// precede the first human unit form a leading turn of their own so that the
// partition covers the whole sequence.
func Partition(units []Unit) []Turn {
	var turns []Turn
	var current []Unit

	for _, u := range units {
		if u.Kind == KindHuman && len(current) > 0 {
			turns = append(turns, Turn{Units: current})
			current = nil
		}
		current = append(current, u)
	}
	if len(current) > 0 {
		turns = append(turns, Turn{Units: current})
	}
	return turns
}
