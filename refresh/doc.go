// Package refresh renews a session's credential pair through the auth
// server's refresh exchange.
//
// # Rotation
//
// Every successful exchange returns a brand-new access and refresh credential
// together with the server's current view of role and membership. The
// [Protocol] writes that value into the session store as a full replacement,
// so a membership change made elsewhere becomes visible at the next refresh.
// Refresh credentials are single-use on the server side.
//
// The write is a compare-and-set. If the user logged out, or another identity
// signed in while the exchange was in flight, the rotated session is dropped
// and the caller gets a no_session failure.
//
// # Deduplication
//
// With deduplication enabled, concurrent callers presenting the same refresh
// credential share one in-flight exchange and all receive its outcome. Without
// it, each caller performs its own exchange and the last write wins.
//
// # Architecture boundaries
//
// This package owns the exchange-and-replace sequence and failure
// classification. Talking HTTP is the [Exchanger]'s job; deciding to log the
// user out after a failure is the caller's.
//
// # What this package must NOT do
//
//   - Clear the session store on failure.
//   - Merge old and new sessions.
//   - Overwrite a session that replaced the one being refreshed.
//   - Retry an exchange that the server rejected.
package refresh
