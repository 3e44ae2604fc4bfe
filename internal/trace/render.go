// Package trace renders relayed chunks as hex / ASCII / decimal blocks.
//
// Render is a pure function of an Event.  Tracer serialises rendered
// blocks onto a single sink so the two relay directions never
// interleave, and optionally colours them by direction.
package trace

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Layout of a rendered block.
const (
	BytesPerLine = 10
	Width        = 120 // separator length and right-alignment margin
	HeaderIndent = 30
	TimeLayout   = "2006-01-02 15:04:05.000"

	hexWidth   = 31
	asciiWidth = 10
	decWidth   = 40
	fieldSep   = " | "
)

// Direction is the logical data-flow direction of a chunk, independent
// of which relay loop read it.
type Direction int

const (
	// ClientToServer chunks travel from the inbound peer to the remote
	// target.  They render left-aligned.
	ClientToServer Direction = iota
	// ServerToClient chunks travel from the remote target back to the
	// inbound peer.  They render pushed to the right margin.
	ServerToClient
)

func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	default:
		return "unknown"
	}
}

// Event is one chunk read by a relay loop.  Payload is only valid for
// the duration of the Trace call.
type Event struct {
	Direction Direction
	Payload   []byte
	Time      time.Time
	Client    string // inbound peer address
	Server    string // remote target address
}

// Render formats ev as a complete block, newline-terminated.
func Render(ev Event) string {
	var b strings.Builder
	indent := strings.Repeat(" ", HeaderIndent)

	from, to := ev.Client, ev.Server
	if ev.Direction == ServerToClient {
		from, to = to, from
	}

	b.WriteString(indent + ev.Time.Format(TimeLayout) + "\n")
	b.WriteString(indent + from + " -> " + to + "\n")
	b.WriteString(indent + "Message length: " + strconv.Itoa(len(ev.Payload)) + "\n")
	b.WriteString("\n")

	for off := 0; off < len(ev.Payload); off += BytesPerLine {
		line := BodyLine(ev.Payload[off:min(off+BytesPerLine, len(ev.Payload))])
		if ev.Direction == ServerToClient {
			line = padLeft(line, Width)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(strings.Repeat("-", Width) + "\n")
	return b.String()
}

// BodyLine renders up to BytesPerLine bytes as the three fixed-width
// columns, without alignment or newline.
func BodyLine(group []byte) string {
	hex := make([]string, len(group))
	dec := make([]string, len(group))
	ascii := make([]rune, len(group))
	for i, c := range group {
		hex[i] = fmt.Sprintf("%02X", c)
		dec[i] = fmt.Sprintf("%03d", c)
		if c < 32 {
			ascii[i] = '.'
		} else {
			ascii[i] = rune(c) // Latin-1
		}
	}

	return padRight(strings.Join(hex, " "), hexWidth) +
		fieldSep + padRight(string(ascii), asciiWidth) +
		fieldSep + padRight(strings.Join(dec, " "), decWidth) + "|"
}

func padRight(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}
