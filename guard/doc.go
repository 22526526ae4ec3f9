// Package guard decides whether a navigation target may be shown for the
// current session, and where to send the user instead.
//
// # Guards
//
//   - [Public] admits everyone.
//   - [Presence] admits any signed-in user.
//   - [Roles] admits listed tiers.
//   - [Capability] admits tiers holding a capability.
//
// A [Navigator] holds a route table of guards, evaluates it synchronously
// against the session store, and sends unknown paths to a fallback. Tables
// can be loaded from YAML or TOML with [LoadTable].
//
// # Architecture boundaries
//
// Guards read the session store and the capability table only. They are pure
// functions of the current session and never block.
//
// # What this package must NOT do
//
//   - Make network calls or refresh credentials.
//   - Mutate the session store.
//   - Render anything.
package guard
