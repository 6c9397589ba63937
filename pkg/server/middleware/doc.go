// Package middleware provides the HTTP middleware of the RecordGuard API:
// request ids, structured request logging, panic recovery, request
// deadlines and body limits.
//
// Middleware is applied innermost to outermost:
//
//	handler = middleware.TimeoutMiddleware(cfg.RequestTimeout)(handler)
//	handler = middleware.BodyLimitMiddleware(cfg.MaxBodyBytes)(handler)
//	handler = middleware.RecoveryMiddleware(logger)(handler)
//	handler = middleware.LoggingMiddleware(logger)(handler)
//	handler = middleware.RequestIDMiddleware(handler)
//
// RequestIDMiddleware is outermost so every log line and error body carries
// the id, and recovery sits inside logging so recovered panics are logged
// as 500s.
//
// Errors raised by the middleware use the same JSON envelope as the API:
//
//	{"error": {"code": "payload_too_large", "message": "...", "request_id": "..."}}
package middleware
