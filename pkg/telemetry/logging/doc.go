// Package logging configures log/slog for RecordGuard.
//
// New returns a *slog.Logger whose handler masks personal data in every
// attribute value: emails keep only their domain, card numbers, SSNs and
// phone numbers are replaced, IPv4 addresses keep their first octet, and
// attributes with secret-sounding keys (password, token, encryption_key,
// cvv, ...) are masked entirely. Records logged with a context carry the
// validation id and actor stored with WithValidationID and WithActor.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	ctx = logging.WithValidationID(ctx, id)
//	logger.InfoContext(ctx, "record rejected", "email", "ada@example.com")
//	// {"msg":"record rejected","validation_id":"...","email":"***@example.com"}
package logging
