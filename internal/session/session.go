// Package session runs one relay session: an accepted inbound
// connection paired with its outbound connection, and the two copy
// loops that shuttle and trace bytes between them.
package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ncerr "tcptrace/internal/errors"
	"tcptrace/internal/metrics"
	"tcptrace/internal/trace"
	"tcptrace/util"
)

// Tracer receives one event per relayed chunk.
type Tracer interface {
	Trace(ev trace.Event) error
}

// Session pairs one inbound and one outbound connection.  Each loop
// owns one read side and one write side; the only state they share is
// the tracer and the counters.
type Session struct {
	Inbound     net.Conn
	Outbound    net.Conn
	InboundAddr string // peer IP of the inbound connection
	RemoteAddr  string // relay target host

	// TraceEOF emits an empty client→server block when the client
	// closes its side.  The server→client loop never traces its EOF.
	TraceEOF bool
	Metrics  *metrics.Collector

	tracer Tracer
	logger *util.Logger

	started        atomic.Bool
	startTime      time.Time
	clientToServer atomic.Int64
	serverToClient atomic.Int64
	closeOnce      sync.Once
	done           chan struct{}
}

// New binds an accepted inbound connection to its outbound connection.
func New(inbound, outbound net.Conn, remoteAddr string, tracer Tracer, logger *util.Logger) *Session {
	return &Session{
		Inbound:     inbound,
		Outbound:    outbound,
		InboundAddr: util.PeerIP(inbound.RemoteAddr()),
		RemoteAddr:  remoteAddr,
		TraceEOF:    true,
		tracer:      tracer,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Run starts both copy loops and returns as soon as either one exits.
// The other loop is left to unwind on its own once it sees its socket
// closed; use Done or Wait to observe that.  Cancelling ctx closes both
// sockets.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ncerr.ErrSessionOver
	}
	s.startTime = time.Now()
	s.Metrics.SessionOpened()
	defer s.Metrics.SessionClosed()

	first := make(chan struct{}, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.forwardToOutbound()
		first <- struct{}{}
	}()
	go func() {
		defer wg.Done()
		s.forwardToInbound()
		first <- struct{}{}
	}()
	go func() {
		wg.Wait()
		close(s.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.closeBoth()
		case <-s.done:
		}
	}()

	select {
	case <-first:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		<-s.done
		return err
	}
	return nil
}

// Done is closed once both loops have exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until both loops have exited.
func (s *Session) Wait() { <-s.done }

// Close closes both connections, forcing both loops to unwind.
func (s *Session) Close() { s.closeBoth() }

// ClientToServerBytes returns the bytes forwarded inbound → outbound.
func (s *Session) ClientToServerBytes() int64 { return s.clientToServer.Load() }

// ServerToClientBytes returns the bytes forwarded outbound → inbound.
func (s *Session) ServerToClientBytes() int64 { return s.serverToClient.Load() }

// Duration returns how long the session has been running.
func (s *Session) Duration() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// forwardToOutbound copies client → server.  A graceful EOF from the
// client is traced as an empty chunk before the loop ends.  On exit it
// closes the outbound connection, which in turn ends the other loop.
func (s *Session) forwardToOutbound() {
	defer s.Outbound.Close()

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, err := s.Inbound.Read(*buf)
		if n > 0 {
			chunk := (*buf)[:n]
			if _, werr := s.Outbound.Write(chunk); werr != nil {
				s.streamEnded("write to server", werr)
				return
			}
			s.clientToServer.Add(int64(n))
			s.Metrics.ClientToServer(int64(n))
			s.trace(trace.ClientToServer, chunk)
		}
		if err != nil {
			if ncerr.IsEOF(err) {
				if s.TraceEOF {
					s.trace(trace.ClientToServer, nil)
				}
				s.logger.Info("client closed the connection")
				return
			}
			s.streamEnded("read from client", err)
			return
		}
	}
}

// forwardToInbound copies server → client.  EOF ends the loop without a
// trace.  On exit it closes the inbound connection.
func (s *Session) forwardToInbound() {
	defer s.Inbound.Close()

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, err := s.Outbound.Read(*buf)
		if n > 0 {
			chunk := (*buf)[:n]
			if _, werr := s.Inbound.Write(chunk); werr != nil {
				s.streamEnded("write to client", werr)
				return
			}
			s.serverToClient.Add(int64(n))
			s.Metrics.ServerToClient(int64(n))
			s.trace(trace.ServerToClient, chunk)
		}
		if err != nil {
			if ncerr.IsEOF(err) {
				s.logger.Info("server closed the connection")
				return
			}
			s.streamEnded("read from server", err)
			return
		}
	}
}

func (s *Session) trace(dir trace.Direction, chunk []byte) {
	err := s.tracer.Trace(trace.Event{
		Direction: dir,
		Payload:   chunk,
		Time:      time.Now(),
		Client:    s.InboundAddr,
		Server:    s.RemoteAddr,
	})
	if err != nil {
		s.logger.Debug("trace sink: %v", err)
	}
}

// streamEnded logs a loop-ending I/O error.  Closed sockets are the
// normal way the second loop unwinds, so only unexpected errors are
// counted.
func (s *Session) streamEnded(op string, err error) {
	if ncerr.IsStreamEnd(err) {
		s.logger.Verbose("%s: %v", op, err)
		return
	}
	s.Metrics.RecordError(op + ": " + err.Error())
	s.logger.Verbose("%s failed: %v", op, err)
}

func (s *Session) closeBoth() {
	s.closeOnce.Do(func() {
		s.Inbound.Close()
		s.Outbound.Close()
	})
}
