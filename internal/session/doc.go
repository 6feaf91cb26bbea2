// Package session owns the authentication lifecycle for one remote account
// credential.
//
// A Session is the single serialization point guarding all remote access:
// every subscription setup and every device command calls Authenticate first
// and relies on its idempotence. While a credential exchange is in flight,
// concurrent Authenticate calls join it instead of issuing duplicates.
//
// The remote endpoints are abstract (AuthTransport, RevocationTransport);
// the HTTP implementations live in internal/cloudauth.
package session
