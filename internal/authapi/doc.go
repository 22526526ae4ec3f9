// Package authapi is the JSON boundary to the catalog's auth service for the
// unauthenticated exchanges: login, refresh and registration.
//
// Calls made here never go through the credential-attaching dispatcher, so a
// failing refresh can never trigger another refresh.
package authapi
