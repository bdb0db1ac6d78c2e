// Package identity implements Courier's user identity foundation.
//
// It contains the user profile store consumed by the HTTP and WebSocket
// layers, password hashing (Argon2id), and ULID primitives.
//
// This package is intentionally dependency-light and security-first.
package identity
