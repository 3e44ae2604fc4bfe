// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a tcptrace process.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks relay metrics across sessions.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive      atomic.Int64
	sessionsTotal       atomic.Int64
	bytesClientToServer atomic.Int64
	bytesServerToClient atomic.Int64
	chunksTraced        atomic.Int64
	connectRetries      atomic.Int64
	tunnelReconnects    atomic.Int64
	errorsTotal         atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastSession  time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total session counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
	c.mu.Lock()
	c.lastSession = time.Now()
	c.mu.Unlock()
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of sessions currently relaying.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// ClientToServer records n bytes forwarded from the inbound peer to
// the remote target.
func (c *Collector) ClientToServer(n int64) {
	if c == nil {
		return
	}
	c.bytesClientToServer.Add(n)
}

// ServerToClient records n bytes forwarded from the remote target back
// to the inbound peer.
func (c *Collector) ServerToClient(n int64) {
	if c == nil {
		return
	}
	c.bytesServerToClient.Add(n)
}

// TotalClientToServer returns total bytes forwarded client→server.
func (c *Collector) TotalClientToServer() int64 {
	if c == nil {
		return 0
	}
	return c.bytesClientToServer.Load()
}

// TotalServerToClient returns total bytes forwarded server→client.
func (c *Collector) TotalServerToClient() int64 {
	if c == nil {
		return 0
	}
	return c.bytesServerToClient.Load()
}

// ChunkTraced records one rendered trace block.
func (c *Collector) ChunkTraced() {
	if c == nil {
		return
	}
	c.chunksTraced.Add(1)
}

// ChunksTraced returns the number of rendered trace blocks.
func (c *Collector) ChunksTraced() int64 {
	if c == nil {
		return 0
	}
	return c.chunksTraced.Load()
}

// ── Outbound metrics ─────────────────────────────────────────────────

// ConnectRetry records a failed outbound dial that will be retried.
func (c *Collector) ConnectRetry() {
	if c == nil {
		return
	}
	c.connectRetries.Add(1)
}

// ConnectRetries returns the total failed outbound dial count.
func (c *Collector) ConnectRetries() int64 {
	if c == nil {
		return 0
	}
	return c.connectRetries.Load()
}

// TunnelReconnect records an SSH gateway reconnection.
func (c *Collector) TunnelReconnect() {
	if c == nil {
		return
	}
	c.tunnelReconnects.Add(1)
}

// TunnelReconnects returns the total SSH gateway reconnection count.
func (c *Collector) TunnelReconnects() int64 {
	if c == nil {
		return 0
	}
	return c.tunnelReconnects.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime              string `json:"uptime"`
	SessionsActive      int64  `json:"sessions_active"`
	SessionsTotal       int64  `json:"sessions_total"`
	BytesClientToServer int64  `json:"bytes_client_to_server"`
	BytesServerToClient int64  `json:"bytes_server_to_client"`
	ChunksTraced        int64  `json:"chunks_traced"`
	ConnectRetries      int64  `json:"connect_retries"`
	TunnelReconnects    int64  `json:"tunnel_reconnects"`
	ErrorsTotal         int64  `json:"errors_total"`
	LastSession         string `json:"last_session,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorMessage    string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:              time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:      c.sessionsActive.Load(),
		SessionsTotal:       c.sessionsTotal.Load(),
		BytesClientToServer: c.bytesClientToServer.Load(),
		BytesServerToClient: c.bytesServerToClient.Load(),
		ChunksTraced:        c.chunksTraced.Load(),
		ConnectRetries:      c.connectRetries.Load(),
		TunnelReconnects:    c.tunnelReconnects.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
	}
	if !c.lastSession.IsZero() {
		s.LastSession = c.lastSession.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
