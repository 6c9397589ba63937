// Package ratelimit limits HTTP API requests per caller with a token
// bucket and an in-flight cap. Callers are keyed by authenticated user
// or, without authentication, by remote IP.
package ratelimit
