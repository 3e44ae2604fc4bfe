// Package transport provides abstractions for opening the relay's
// outbound connection.  Transports handle the "how" of reaching the
// target (plain TCP or through an SSH gateway) independent of what the
// relay does with the connection.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
