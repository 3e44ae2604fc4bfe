package core

import (
	"context"
	"fmt"
	"net"
	"sync"

	"tcptrace/config"
	ncerr "tcptrace/internal/errors"
	"tcptrace/internal/metrics"
	"tcptrace/internal/retry"
	"tcptrace/internal/transport"
	"tcptrace/util"
)

// Broker owns the listening socket and produces connected pairs: an
// accepted inbound connection and, only after that, its outbound
// connection to the relay target.
type Broker struct {
	ListenAddr string // "host:port", port 0 picks an ephemeral port
	RemoteHost string
	RemotePort int
	Dialer     transport.Dialer
	Retry      *retry.Backoff // nil → retry.Fixed(config.DefaultRetryInterval)
	Logger     *util.Logger
	Metrics    *metrics.Collector

	mu sync.Mutex
	ln net.Listener
}

// Listen binds the listening socket.  The socket is closed when ctx is
// cancelled, which unblocks a pending AcceptInbound.
func (b *Broker) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.ListenAddr)
	if err != nil {
		return ncerr.Wrap("listen", b.ListenAddr, err)
	}

	b.mu.Lock()
	b.ln = ln
	b.mu.Unlock()

	b.Logger.Info("listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (b *Broker) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ln == nil {
		return nil
	}
	return b.ln.Addr()
}

// AcceptInbound blocks until a client connects and returns the
// connection together with the client's IP.
func (b *Broker) AcceptInbound(ctx context.Context) (net.Conn, string, error) {
	b.mu.Lock()
	ln := b.ln
	b.mu.Unlock()
	if ln == nil {
		return nil, "", ncerr.ErrNotConnected
	}

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", ncerr.Wrap("accept", ln.Addr().String(), err)
	}
	return conn, util.PeerIP(conn.RemoteAddr()), nil
}

// ConnectOutbound dials the relay target until it answers.  Each failed
// attempt is logged and counted, then retried after the fixed interval.
// Only cancellation of ctx ends the loop without a connection.
func (b *Broker) ConnectOutbound(ctx context.Context) (net.Conn, error) {
	addr := b.RemoteAddr()
	policy := b.retryPolicy()

	var conn net.Conn
	err := policy.Do(ctx, func(attempt int) error {
		c, err := b.Dialer.Dial(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			b.Metrics.ConnectRetry()
			err = ncerr.Wrap("dial", addr, err)
			b.Logger.Warn("failed to connect to %s (attempt %d), retrying in %s", addr, attempt, policy.Delay())
			b.Logger.Verbose("%v", err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return conn, nil
}

func (b *Broker) retryPolicy() *retry.Backoff {
	if b.Retry != nil {
		return b.Retry
	}
	return retry.Fixed(config.DefaultRetryInterval)
}

// RemoteAddr returns the "host:port" of the relay target.
func (b *Broker) RemoteAddr() string {
	return util.FormatAddr(b.RemoteHost, b.RemotePort)
}

// Close releases the listener and the dialer.
func (b *Broker) Close() error {
	b.mu.Lock()
	ln := b.ln
	b.mu.Unlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !ncerr.IsStreamEnd(err) {
			errs = append(errs, err)
		}
	}
	if b.Dialer != nil {
		if err := b.Dialer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return ncerr.Join(errs...)
}
