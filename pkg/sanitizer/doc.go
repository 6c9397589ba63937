// Package sanitizer cleanses untrusted string content in records and
// detects injection hazards and personal data.
//
// # Sanitization
//
// Sanitize walks a record recursively and returns a cleaned deep copy; the
// input is never modified. Every string passes through, in order:
//
//   - SQL token stripping (tautologies, UNION SELECT, stacked statements,
//     trailing comments)
//   - cross-site scripting removal (script URLs, inline event handlers)
//   - script-injection token removal (eval, timers, DOM writes)
//   - the markup allow-list, for fields configured as markup fields
//   - caller-supplied custom rules scoped to a field
//
// The steps repeat until the value stops changing. Plain fields are then
// entity escaped (< > " ' /), markup fields are re-rendered through
// golang.org/x/net/html keeping only allow-listed tags. Escaping is
// reversible and applied exactly once, so sanitizing sanitized output is a
// no-op.
//
// # Known Limitations
//
// SQL sanitization is best-effort pattern matching. It has false negatives
// and is not a substitute for parameterized queries. Likewise XSS handling
// does not replace context-aware output encoding or a content security
// policy.
//
// # Detection
//
// DetectThreats and DetectPII perform the same walk read-only. PII matches
// carry a confidence and a masked preview, never the raw value:
//
//	john.doe@example.com  -> j***e@example.com
//	4111 1111 1111 1111   -> ************1111
//	123-45-6789           -> ***-**-6789
package sanitizer
