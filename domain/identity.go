// Package domain contains core concepts of the chat gateway.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the authenticated user descriptor bound to a connection.
// It is supplied once at handshake time by the identity provider and is
// immutable for the life of the connection.
type Identity struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}
