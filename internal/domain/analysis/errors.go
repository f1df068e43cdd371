package analysis

import "errors"

// Upstream failure classes. Handlers map these to generic caller-facing
// wording; the raw upstream body is logged server-side only.
var (
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrAccessDenied indicates the provider rejected our credentials (401/403).
	ErrAccessDenied = errors.New("ai access denied")

	// ErrBadInput indicates the provider could not process the uploaded documents (400).
	ErrBadInput = errors.New("ai rejected input")

	// ErrUpstream covers every other provider failure.
	ErrUpstream = errors.New("ai upstream error")
)
