// Package core is the orchestration layer.  It composes the broker,
// the relay session and the tracer into the supervisor loop, and
// provides a builder that wires them from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  core  →  cmd (CLI)
//
// The builder in this package is the single dispatch point between the
// parsed configuration and the running relay.
package core

import "context"

// Mode is a complete operational mode of tcptrace.  It owns its full
// lifecycle from binding the listener to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

var _ Mode = (*Supervisor)(nil)
