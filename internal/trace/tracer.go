package trace

import (
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"tcptrace/internal/metrics"
)

// directionColors maps a direction to an ANSI colour index.
var directionColors = map[Direction]string{ //nolint:gochecknoglobals
	ClientToServer: "2", // green
	ServerToClient: "4", // blue
}

// Tracer writes rendered blocks to a single sink.  It is safe for
// concurrent use by both relay loops of a session.
type Tracer struct {
	mu      sync.Mutex
	out     io.Writer
	color   *termenv.Output
	metrics *metrics.Collector
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithColor colours blocks by direction using the given terminal
// output.  An output with the Ascii profile leaves blocks plain.
func WithColor(out *termenv.Output) Option {
	return func(t *Tracer) {
		if out != nil && out.Profile != termenv.Ascii {
			t.color = out
		}
	}
}

// WithMetrics counts every traced block.
func WithMetrics(m *metrics.Collector) Option {
	return func(t *Tracer) { t.metrics = m }
}

// New returns a Tracer writing to out.
func New(out io.Writer, opts ...Option) *Tracer {
	t := &Tracer{out: out}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trace renders ev and writes the block in a single call while holding
// the sink lock.
func (t *Tracer) Trace(ev Event) error {
	block := Render(ev)
	if t.color != nil {
		body := strings.TrimSuffix(block, "\n")
		block = t.color.String(body).Foreground(t.color.Color(directionColors[ev.Direction])).String() + "\n"
	}

	t.mu.Lock()
	_, err := io.WriteString(t.out, block)
	t.mu.Unlock()

	t.metrics.ChunkTraced()
	return err
}
