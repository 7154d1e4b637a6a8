// Package segment groups normalized units into size-bounded blocks.
//
// Two callers share the one algorithm: the background pipeline segments a
// flat unit list, and the swap controller segments an identified transcript
// window so it can report a cut-point back to the host. Both must produce
// identical hashes for identical underlying text. Cache hits across the
// two paths depend on it.
package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/packrat-ai/packrat/internal/unit"
)

// DefaultBlockTokens is the default block-size ceiling.
const DefaultBlockTokens = 4000

// unitSeparator joins unit texts inside a block. Part of the hashed
// content, so it must never change.
const unitSeparator = "\n\n"

// splitTolerance is how far (in bytes) a hard split may move backward to
// land on a newline.
const splitTolerance = 200

// Block is one or more contiguous units, or a fragment of a single
// oversized unit, bounded by the block-size ceiling.
type Block struct {
	// Text is the concatenated rendered text of the block's units.
	Text string

	// Hash is the SHA-256 hex digest of Text.
	Hash string

	// Tokens is the token estimate for Text.
	Tokens int

	// FirstUnitID is the transcript identifier of the block's first source
	// unit, when the units carried identifiers. Hard-split fragments inherit
	// the identifier of the unit they were split from.
	FirstUnitID string
}

// Segment partitions units into turns and emits size-bounded blocks.
// Prior-summary and branch-summary units are dropped first; they are
// already-compressed history and are handled separately.
//
// A turn that fits within maxTokens becomes one block. An oversized turn is
// walked unit by unit; a single unit over the ceiling is hard-split into
// fixed-size fragments snapped to the nearest newline.
func Segment(units []unit.Unit, maxTokens int) []Block {
	if maxTokens <= 0 {
		maxTokens = DefaultBlockTokens
	}

	kept := units[:0:0]
	for _, u := range units {
		if u.Kind == unit.KindPriorSummary || u.Kind == unit.KindBranchSummary {
			continue
		}
		kept = append(kept, u)
	}

	var blocks []Block
	for _, turn := range unit.Partition(kept) {
		blocks = append(blocks, segmentTurn(turn, maxTokens)...)
	}
	return blocks
}

// SummaryUnits returns the prior-summary and branch-summary units that
// Segment drops, in order. The swap controller uses them to seed the
// compacted history on a controller restart.
func SummaryUnits(units []unit.Unit) []unit.Unit {
	var out []unit.Unit
	for _, u := range units {
		if u.Kind == unit.KindPriorSummary || u.Kind == unit.KindBranchSummary {
			out = append(out, u)
		}
	}
	return out
}

func segmentTurn(turn unit.Turn, maxTokens int) []Block {
	total := 0
	for _, u := range turn.Units {
		total += EstimateTokens(u.Text)
	}
	if total <= maxTokens {
		return []Block{newBlock(turn.Units)}
	}

	var blocks []Block
	var pending []unit.Unit
	pendingTokens := 0

	flush := func() {
		if len(pending) > 0 {
			blocks = append(blocks, newBlock(pending))
			pending = nil
			pendingTokens = 0
		}
	}

	for _, u := range turn.Units {
		tokens := EstimateTokens(u.Text)

		if tokens > maxTokens {
			// A single unit over the ceiling is split on its own; it can
			// never share a block.
			flush()
			blocks = append(blocks, splitUnit(u, maxTokens)...)
			continue
		}

		if pendingTokens+tokens > maxTokens {
			flush()
		}
		pending = append(pending, u)
		pendingTokens += tokens
	}
	flush()
	return blocks
}

// splitUnit hard-splits an oversized unit into fixed-size text fragments.
// Each fragment becomes its own block and inherits the unit's identifier so
// host cut-point math stays correct. Split points snap backward to the
// nearest newline within splitTolerance bytes.
func splitUnit(u unit.Unit, maxTokens int) []Block {
	chunkBytes := maxTokens * charsPerToken
	text := u.Text

	var blocks []Block
	for len(text) > 0 {
		end := chunkBytes
		if end >= len(text) {
			end = len(text)
		} else if idx := strings.LastIndexByte(text[end-min(splitTolerance, end):end], '\n'); idx >= 0 {
			end = end - min(splitTolerance, end) + idx + 1
		} else {
			// No newline in the window. Walk back to a rune boundary so
			// the cut never leaves invalid UTF-8 in either fragment.
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == 0 {
				end = chunkBytes
			}
		}

		fragment := text[:end]
		text = text[end:]
		blocks = append(blocks, Block{
			Text:        fragment,
			Hash:        HashText(fragment),
			Tokens:      EstimateTokens(fragment),
			FirstUnitID: u.ID,
		})
	}
	return blocks
}

func newBlock(units []unit.Unit) Block {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	text := strings.Join(texts, unitSeparator)
	return Block{
		Text:        text,
		Hash:        HashText(text),
		Tokens:      EstimateTokens(text),
		FirstUnitID: units[0].ID,
	}
}

// HashText returns the SHA-256 hex digest used for content addressing.
// Blocks derived from the same underlying text must always hash identically
// regardless of which code path produced them.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the filename-friendly prefix of a content hash.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
