// Package session implements Courier's access-token layer.
//
// Access tokens are issued as PASETO v4.public and are short-lived. They are
// the bearer credential for both the HTTP API and the WebSocket handshake:
// a connection that cannot present a verifiable token is never established.
//
// Refresh tokens and multi-device session storage are intentionally out of
// scope; clients re-authenticate when an access token expires.
package session
