// Package devserver is an in-memory stand-in for the catalog's auth and user
// services. It serves the same JSON endpoints the client talks to, issues
// HS256 access tokens and single-use refresh tokens, and exposes controls
// for revoking and expiring credentials so the client's retry and forced
// logout paths can be exercised end to end.
//
// It is meant for local development and tests, not production.
package devserver
