// Package authclient is the session layer of the TV-shows catalog client. It
// signs users in, keeps the session in a single observable store, attaches
// credentials to outgoing API calls, renews them once when the API answers
// 401, and gates views and operations on the session's membership tier.
//
// The package is designed for concurrent use: [Client] methods are safe to
// call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// authclient is the public surface. It exposes [Client], [Builder], [Config]
// and the error taxonomy. Session state lives in package session, the renewal
// exchange in package refresh, tier capabilities in package permission and
// route decisions in package guard. Wire formats and the development server
// live under internal/.
//
// # What this package must NOT do
//
//   - Retry a request more than once or refresh in response to a 401 from
//     the login, refresh or register endpoints.
//   - Attach credentials to requests for origins other than BaseURL.
//   - Log credentials.
//   - Perform I/O in [Builder.Build]; call [Client.Restore] to load a
//     persisted session.
package authclient
