// Package tlsconfig builds the TLS configuration of the HTTP API:
// certificate loading with rotation, protocol and cipher restrictions,
// and optional client certificates whose identity becomes the caller's
// user ID.
package tlsconfig
