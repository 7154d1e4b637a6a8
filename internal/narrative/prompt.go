package narrative

// systemPrompt instructs the service to evolve, not rewrite, the working
// memory document. %d is the word budget.
const systemPrompt = `You maintain a short working-memory document for an ongoing session.
Evolve the existing document with the latest turns — do not rewrite it from scratch.

The document has exactly these sections, in this order:

## Current objective
One or two sentences.

## Event log
Sequential, append-only. Add new entries at the bottom; never reorder or
rewrite existing entries. When the document nears the word budget, compress
only the OLDEST entries that are already resolved.

## Now
What is happening right now.

## Decisions
Accumulated decisions, one per line. Never drop a decision.

## Open errors
Unresolved errors only; remove entries once resolved.

Hard cap: %d words total. Output only the document.`
