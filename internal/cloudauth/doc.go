// Package cloudauth provides the HTTP implementations of the session
// package's auth transports: credential exchange and credential revocation.
//
// The exchange endpoint answers with a JWT access token; the client never
// verifies the signature (that is the server's job) but reads the expiry
// claim so the channel can report when its validity window lapses.
package cloudauth
