// Package auth handles caller identity for the API surface.
//
// MeterLease Core does not run its own user database. Callers are accounts
// authenticated by the platform's identity service, which issues JWTs
// signed with the shared secret. This package validates those tokens and
// extracts the caller (subject) and role.
package auth
