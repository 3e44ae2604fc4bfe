package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Sessions(t *testing.T) {
	c := New()

	c.SessionOpened()
	if c.ActiveSessions() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveSessions())
	}
	c.SessionClosed()
	c.SessionOpened()
	c.SessionClosed()

	if c.ActiveSessions() != 0 {
		t.Errorf("active = %d, want 0", c.ActiveSessions())
	}
	if c.TotalSessions() != 2 {
		t.Errorf("total = %d, want 2", c.TotalSessions())
	}
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.ClientToServer(1024)
	c.ServerToClient(512)
	c.ClientToServer(100)

	if c.TotalClientToServer() != 1124 {
		t.Errorf("client→server = %d, want 1124", c.TotalClientToServer())
	}
	if c.TotalServerToClient() != 512 {
		t.Errorf("server→client = %d, want 512", c.TotalServerToClient())
	}
}

func TestCollector_ConcurrentBytes(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.ClientToServer(1)
				c.ChunkTraced()
			}
		}()
	}
	wg.Wait()

	if c.TotalClientToServer() != 8000 {
		t.Errorf("client→server = %d, want 8000", c.TotalClientToServer())
	}
	if c.ChunksTraced() != 8000 {
		t.Errorf("chunks = %d, want 8000", c.ChunksTraced())
	}
}

func TestCollector_Retries(t *testing.T) {
	c := New()

	c.ConnectRetry()
	c.ConnectRetry()
	c.TunnelReconnect()

	if c.ConnectRetries() != 2 {
		t.Errorf("retries = %d, want 2", c.ConnectRetries())
	}
	if c.TunnelReconnects() != 1 {
		t.Errorf("reconnects = %d, want 1", c.TunnelReconnects())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if got := c.Snapshot().LastErrorMessage; got != "second error" {
		t.Errorf("last error = %q", got)
	}
}

func TestCollector_Snapshot(t *testing.T) {
	c := New()
	c.SessionOpened()
	c.ClientToServer(100)
	c.ServerToClient(50)
	c.RecordError("test")

	snap := c.Snapshot()
	if snap.SessionsActive != 1 {
		t.Errorf("snap active = %d", snap.SessionsActive)
	}
	if snap.BytesClientToServer != 100 || snap.BytesServerToClient != 50 {
		t.Errorf("snap bytes = %d/%d", snap.BytesClientToServer, snap.BytesServerToClient)
	}
	if snap.LastSession == "" {
		t.Error("expected last session timestamp")
	}
	if snap.ErrorsTotal != 1 {
		t.Errorf("snap errors = %d", snap.ErrorsTotal)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.SessionOpened()
	c.ServerToClient(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.SessionsTotal != 1 {
		t.Errorf("JSON total = %d", snap.SessionsTotal)
	}
	if snap.BytesServerToClient != 42 {
		t.Errorf("JSON server→client = %d", snap.BytesServerToClient)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.SessionOpened()
	c.SessionClosed()
	c.ClientToServer(100)
	c.ServerToClient(100)
	c.ChunkTraced()
	c.ConnectRetry()
	c.TunnelReconnect()
	c.RecordError("test")

	if c.ActiveSessions() != 0 || c.TotalClientToServer() != 0 || c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}

	if snap := c.Snapshot(); snap.SessionsTotal != 0 {
		t.Error("nil snapshot should be zero")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}
}
