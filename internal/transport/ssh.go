package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	ncerr "tcptrace/internal/errors"
	"tcptrace/internal/metrics"
	"tcptrace/tunnel"
	"tcptrace/util"
)

// SSHDialer routes connections through an SSH gateway.  The gateway
// is connected lazily on the first Dial and reconnected on a later Dial
// if it has dropped, so gateway outages fall under the caller's retry
// policy like any other dial failure.
type SSHDialer struct {
	newTunnel func() tunnel.Tunnel
	logger    *util.Logger
	metrics   *metrics.Collector

	mu     sync.Mutex
	tunnel tunnel.Tunnel
	dials  int // successful gateway connects
	closed bool
}

// NewSSHDialer creates a dialer that forwards connections through the
// gateway described by cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger, m *metrics.Collector) *SSHDialer {
	return newSSHDialer(func() tunnel.Tunnel { return tunnel.NewSSHTunnel(cfg, logger) }, logger, m)
}

func newSSHDialer(factory func() tunnel.Tunnel, logger *util.Logger, m *metrics.Collector) *SSHDialer {
	return &SSHDialer{newTunnel: factory, logger: logger, metrics: m}
}

// connect returns a live tunnel, establishing one if needed.
func (d *SSHDialer) connect(ctx context.Context) (tunnel.Tunnel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ncerr.ErrTunnelClosed
	}
	if d.tunnel != nil && d.tunnel.IsAlive() {
		return d.tunnel, nil
	}
	if d.tunnel != nil {
		d.tunnel.Close() //nolint:errcheck
		d.tunnel = nil
	}

	t := d.newTunnel()
	if err := t.Connect(ctx); err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	if d.dials > 0 {
		d.metrics.TunnelReconnect()
		d.logger.Info("SSH gateway reconnected")
	} else {
		d.logger.Verbose("SSH gateway established")
	}
	d.dials++
	d.tunnel = t
	return t, nil
}

// Dial connects to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	return t.Dial(ctx, network, address)
}

// Close tears down the gateway connection.  Later Dials fail.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.tunnel == nil {
		return nil
	}
	err := d.tunnel.Close()
	d.tunnel = nil
	return err
}
