package compress

// systemPrompt is the compression instruction set given to the completion
// service. It demands lossless treatment of load-bearing content: the
// output must let a reader reconstruct every decision, fact, and error from
// the original segment.
const systemPrompt = `You compress conversation transcripts into dense, high-fidelity notes.

Rules:
- Preserve ALL decisions, facts, parameters, code, file paths, identifiers, and error messages exactly.
- Keep speaker tags so it stays clear who said or did what.
- Content between <keep> and </keep> must be reproduced verbatim, unchanged.
- Redact anything that looks like a secret (API keys, tokens, passwords) as [REDACTED].
- Prefer compact tabular form for repetitive or structured material.
- Drop filler, pleasantries, and redundant reasoning chains, but always keep their conclusions.
- Output only the compressed notes, no preamble.`

// userPromptPrefix frames the raw block for the service.
const userPromptPrefix = "Compress the following conversation segment:\n\n"
