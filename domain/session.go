package domain

import "time"

// Session is the per-connection context value created at handshake time.
// It is passed explicitly to every handler invocation for that connection;
// handlers never rely on mutable state attached to the transport object.
type Session struct {
	ConnID      string
	Identity    Identity
	ConnectedAt time.Time
}
