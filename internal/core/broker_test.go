package core

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"tcptrace/config"
	ncerr "tcptrace/internal/errors"
	"tcptrace/internal/metrics"
	"tcptrace/internal/retry"
	"tcptrace/internal/transport"
	"tcptrace/util"
)

// flakyDialer refuses the first Fails attempts, then dials for real.
type flakyDialer struct {
	transport.TCPDialer
	Fails int32
	dials atomic.Int32
}

func (d *flakyDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if d.dials.Add(1) <= d.Fails {
		return nil, errors.New("connection refused")
	}
	return d.TCPDialer.Dial(ctx, network, address)
}

// startTarget runs a TCP server that accepts connections and hands
// them to the returned channel.  Receivers own the connections.
func startTarget(t *testing.T) (*net.TCPAddr, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	conns := make(chan net.Conn, 8)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns <- c
		}
	}()
	return ln.Addr().(*net.TCPAddr), conns
}

func newBroker(target *net.TCPAddr, d transport.Dialer, m *metrics.Collector) *Broker {
	return &Broker{
		ListenAddr: "127.0.0.1:0",
		RemoteHost: target.IP.String(),
		RemotePort: target.Port,
		Dialer:     d,
		Retry:      retry.Fixed(20 * time.Millisecond),
		Logger:     util.NewLogger(0),
		Metrics:    m,
	}
}

func TestBroker_AcceptInbound(t *testing.T) {
	target, _ := startTarget(t)
	b := newBroker(target, &transport.TCPDialer{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := b.Listen(ctx); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	client, err := net.Dial("tcp", b.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	conn, peer, err := b.AcceptInbound(ctx)
	if err != nil {
		t.Fatalf("AcceptInbound: %v", err)
	}
	defer conn.Close()
	if peer != "127.0.0.1" {
		t.Errorf("peer = %q, want 127.0.0.1", peer)
	}
}

func TestBroker_AcceptBeforeListen(t *testing.T) {
	b := &Broker{Logger: util.NewLogger(0)}
	if _, _, err := b.AcceptInbound(context.Background()); !ncerr.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestBroker_AcceptCancelled(t *testing.T) {
	target, _ := startTarget(t)
	b := newBroker(target, &transport.TCPDialer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Listen(ctx); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	errc := make(chan error, 1)
	go func() {
		_, _, err := b.AcceptInbound(ctx)
		errc <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("AcceptInbound did not return after cancel")
	}
}

func TestBroker_ListenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	b := &Broker{ListenAddr: ln.Addr().String(), Logger: util.NewLogger(0)}
	err = b.Listen(context.Background())
	var ne *ncerr.NetworkError
	if !errors.As(err, &ne) || ne.Op != "listen" {
		t.Errorf("got %v, want listen NetworkError", err)
	}
}

// The outbound dial retries at the fixed interval until it succeeds.
func TestBroker_ConnectOutboundRetries(t *testing.T) {
	target, conns := startTarget(t)
	m := metrics.New()
	d := &flakyDialer{Fails: 2}
	b := newBroker(target, d, m)

	start := time.Now()
	conn, err := b.ConnectOutbound(context.Background())
	if err != nil {
		t.Fatalf("ConnectOutbound: %v", err)
	}
	defer conn.Close()

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %s, want at least two intervals", elapsed)
	}
	if got := d.dials.Load(); got != 3 {
		t.Errorf("dials = %d, want 3", got)
	}
	if got := m.ConnectRetries(); got != 2 {
		t.Errorf("ConnectRetries = %d, want 2", got)
	}
	select {
	case <-conns:
	case <-time.After(3 * time.Second):
		t.Fatal("target saw no connection")
	}
}

// Retrying never gives up on its own; only cancellation stops it.
func TestBroker_ConnectOutboundCancelled(t *testing.T) {
	target, _ := startTarget(t)
	d := &flakyDialer{Fails: 1 << 30}
	b := newBroker(target, d, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := b.ConnectOutbound(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if d.dials.Load() < 3 {
		t.Errorf("only %d attempts before cancel", d.dials.Load())
	}
}

func TestBroker_DefaultRetryPolicy(t *testing.T) {
	b := &Broker{}
	p := b.retryPolicy()
	if p.InitialDelay != config.DefaultRetryInterval || p.MaxDelay != config.DefaultRetryInterval {
		t.Errorf("delays = %s/%s, want %s", p.InitialDelay, p.MaxDelay, config.DefaultRetryInterval)
	}
	if p.Multiplier != 1 || p.MaxAttempts != 0 || p.Jitter {
		t.Errorf("default policy should be fixed and unlimited: %+v", p)
	}

	custom := retry.Fixed(5 * time.Millisecond)
	b.Retry = custom
	if b.retryPolicy() != custom {
		t.Error("configured policy should be used as is")
	}
}

func TestBroker_RemoteAddr(t *testing.T) {
	b := &Broker{RemoteHost: "10.0.0.5", RemotePort: 8080}
	if got := b.RemoteAddr(); got != "10.0.0.5:8080" {
		t.Errorf("RemoteAddr = %q", got)
	}
}
