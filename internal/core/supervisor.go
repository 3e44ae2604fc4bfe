package core

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"tcptrace/config"
	ncerr "tcptrace/internal/errors"
	"tcptrace/internal/metrics"
	"tcptrace/internal/session"
	"tcptrace/util"
)

// State is the supervisor's position in its accept/relay cycle.
type State int32

const (
	Idle   State = iota // waiting for a client
	Active              // a session owns the connected pair
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Supervisor serves one session at a time, forever.  It never accepts
// while a session is active, and no error short of a listener failure
// takes it out of the loop.
type Supervisor struct {
	Broker   *Broker
	Tracer   session.Tracer
	Logger   *util.Logger
	Metrics  *metrics.Collector
	TraceEOF bool

	// AcceptPause is the wait after a temporary accept error.
	AcceptPause time.Duration
	// DrainTimeout bounds how long the second loop of a finished
	// session may take to unwind before both sockets are forced shut.
	DrainTimeout time.Duration

	// OnSession is called with the client IP once the outbound
	// connection is up.
	OnSession func(peer string)

	state atomic.Int32
}

// State reports whether a session is currently running.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// Run binds the listener and relays sessions until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.Broker.Listen(ctx); err != nil {
		return err
	}
	defer s.Broker.Close()

	for {
		inbound, peer, err := s.Broker.AcceptInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !ncerr.IsRetryable(err) {
				return err
			}
			s.Logger.Warn("accept: %v", err)
			if !sleep(ctx, s.acceptPause()) {
				return nil
			}
			continue
		}

		s.serve(ctx, inbound, peer)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// serve runs one session to completion.  The inbound connection is
// always closed by the time it returns.
func (s *Supervisor) serve(ctx context.Context, inbound net.Conn, peer string) {
	s.Logger.Info("accepted connection from %s", peer)

	outbound, err := s.Broker.ConnectOutbound(ctx)
	if err != nil {
		inbound.Close()
		s.Logger.Verbose("%v", err)
		return
	}

	// Active only once the pair is connected.
	s.state.Store(int32(Active))
	defer s.state.Store(int32(Idle))
	s.Logger.Info("connected to %s", s.Broker.RemoteAddr())

	if s.OnSession != nil {
		s.OnSession(peer)
	}

	sess := session.New(inbound, outbound, s.Broker.RemoteHost, s.Tracer, s.Logger)
	sess.Metrics = s.Metrics
	sess.TraceEOF = s.TraceEOF

	if err := sess.Run(ctx); err != nil {
		s.Logger.Verbose("session: %v", err)
	}

	timer := time.NewTimer(s.drainTimeout())
	select {
	case <-sess.Done():
		timer.Stop()
	case <-timer.C:
		s.Logger.Verbose("session did not drain in %s, closing", s.drainTimeout())
		sess.Close()
		sess.Wait()
	}

	s.Logger.Info("session %s -> %s closed after %s (%d bytes sent, %d bytes received)",
		peer, s.Broker.RemoteAddr(), sess.Duration().Round(time.Millisecond),
		sess.ClientToServerBytes(), sess.ServerToClientBytes())
}

func (s *Supervisor) acceptPause() time.Duration {
	if s.AcceptPause > 0 {
		return s.AcceptPause
	}
	return config.DefaultAcceptPause
}

func (s *Supervisor) drainTimeout() time.Duration {
	if s.DrainTimeout > 0 {
		return s.DrainTimeout
	}
	return config.DefaultDrainTimeout
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
