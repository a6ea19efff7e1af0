// Package auth implements optional bearer-token protection for the read
// surface of the fleet monitor container.
//
// Tokens are HS256 JWTs carrying a subject and a scopes claim. Auth is off
// unless a secret is configured; ingest and health are never gated so device
// traffic keeps flowing regardless of reader credentials.
package auth
