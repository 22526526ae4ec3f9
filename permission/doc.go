// Package permission maps membership tiers to capability bitmasks.
//
// # Model
//
// Capabilities are named bits in a 64-bit [Mask64]. Names are assigned bit
// positions by a [Registry] in registration order and stay stable for the
// lifetime of the process. A [RoleManager] holds one mask per
// [session.Role]. Both are frozen after setup and are then safe for
// concurrent reads.
//
// [Defaults] builds the catalog's tier table: FREE browses and keeps a capped
// watchlist, PREMIUM adds review authoring, ADMIN adds moderation and
// promotion.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The client
// consults it before gated calls; the guard package consults it at
// navigation time.
//
// # What this package must NOT do
//
//   - Access the network, the session store, or durable storage.
//   - Decide where to redirect a denied user.
//   - Change a role's mask after [RoleManager.Freeze].
package permission
