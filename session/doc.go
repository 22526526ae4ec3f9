// Package session holds the client's current authenticated identity and keeps it
// durable across process restarts.
//
// # Store
//
// [Store] is the single owner of the current [Session]. Readers call
// [Store.Current]; observers register with [Store.Subscribe] and are notified
// synchronously, in registration order, on every change made through
// [Store.Set], [Store.Replace] or [Store.Clear].
// A listener always observes a Store whose Current already reflects the value it
// was handed.
//
// # Persistence
//
// The Store writes through to a [Persister] holding one record under a fixed key.
// Sessions are encoded as versioned JSON (see [Encode] and [Decode]). Read or
// decode failures on [Store.Restore] mean "logged out"; write failures are
// logged and reported to the persist-error hook but never block the in-memory
// update.
//
// # Architecture boundaries
//
// This package owns the [Session] model, its codec and the persisters. It does
// NOT talk to the authentication server, decide when to refresh, or evaluate
// capabilities. Those belong to the refresh, permission and root packages.
//
// # What this package must NOT do
//
//   - Import authclient, refresh, guard or permission (no upward imports).
//   - Log credential values.
//   - Hold partial sessions: a Session is either complete or absent.
package session
