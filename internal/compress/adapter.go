// Package compress is the boundary to the external completion service for
// block compression. The adapter enforces the prompt contract and an
// output-size sanity check; it never substitutes a lossy heuristic summary
// on failure. The caller decides the fallback policy.
package compress

import (
	"context"
	"fmt"

	"github.com/packrat-ai/packrat/internal/metrics"
	"github.com/packrat-ai/packrat/internal/provider"
	"github.com/packrat-ai/packrat/internal/redact"
	"github.com/packrat-ai/packrat/internal/segment"
)

// expansionThreshold rejects compression results that save almost nothing:
// a compressed form at or above 95% of the raw estimate is treated as a
// failed compression and the raw text is kept instead.
const expansionThreshold = 0.95

// maxOutputTokens bounds the completion response.
const maxOutputTokens = 2048

// Result is the outcome of compressing one block.
type Result struct {
	Compressed       string
	RawTokens        int
	CompressedTokens int

	// Expanded is true when the expansion guard discarded the service
	// output and Compressed equals the raw input.
	Expanded bool
}

// Adapter compresses raw block text via a Completer.
type Adapter struct {
	completer provider.Completer
	model     string
	redactor  *redact.Redactor
	metrics   *metrics.Metrics
}

// NewAdapter creates an adapter calling the given model. redactor may be
// nil, in which case text is sent as-is.
func NewAdapter(completer provider.Completer, model string, redactor *redact.Redactor, m *metrics.Metrics) *Adapter {
	return &Adapter{completer: completer, model: model, redactor: redactor, metrics: m}
}

// Available reports whether the underlying completion service is usable.
func (a *Adapter) Available() bool {
	return a.completer != nil && a.completer.Available()
}

// Compress sends raw text to the completion service. On any service failure
// it returns an error and no result.
func (a *Adapter) Compress(ctx context.Context, raw string) (Result, error) {
	rawTokens := segment.EstimateTokens(raw)

	// Pasted credentials must not leave the machine.
	outbound := raw
	if a.redactor != nil {
		outbound = a.redactor.Redact(raw)
	}

	text, err := a.completer.Complete(ctx, provider.Request{
		Model:     a.model,
		System:    systemPrompt,
		User:      userPromptPrefix + outbound,
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		a.metrics.RecordCompression(err, false)
		return Result{}, fmt.Errorf("compress: %w", err)
	}

	compressedTokens := segment.EstimateTokens(text)
	if float64(compressedTokens) >= expansionThreshold*float64(rawTokens) {
		// Near-zero savings: keep the raw text verbatim for this block.
		a.metrics.RecordCompression(nil, true)
		return Result{
			Compressed:       raw,
			RawTokens:        rawTokens,
			CompressedTokens: rawTokens,
			Expanded:         true,
		}, nil
	}

	a.metrics.RecordCompression(nil, false)
	return Result{
		Compressed:       text,
		RawTokens:        rawTokens,
		CompressedTokens: compressedTokens,
	}, nil
}
