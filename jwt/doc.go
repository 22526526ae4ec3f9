// Package jwt issues and parses the HS256 access tokens used by the local
// development server, and reads token expiry without verification for the
// client's early-refresh check.
//
// The client never trusts a token's contents for authorization. [PeekExpiry]
// is a scheduling hint only.
package jwt
