// Package internal holds helpers private to the authclient module.
//
// # Sub-packages
//
//   - audit: async session-event dispatch (Dispatcher + Sink implementations)
//   - authapi: wire types and calls for the login, refresh and register endpoints
//   - devserver: in-memory auth and user service for local runs and tests
//   - logging: zerolog setup for the command-line tool
//   - password: Argon2id hashing for the development server
//   - rate: Redis-backed failed-login lockout for the development server
//
// # What this package must NOT do
//
//   - Export types that appear in the public authclient API.
//   - Be imported by any package outside the authclient module.
package internal
