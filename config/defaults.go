package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultRetryInterval is the fixed pause between outbound connect
	// attempts.  The relay retries forever at this interval.
	DefaultRetryInterval = 1 * time.Second

	// DefaultConnTimeout bounds a single outbound dial attempt.
	DefaultConnTimeout = 30 * time.Second

	// DefaultAcceptPause is how long the supervisor waits after a
	// temporary accept failure before accepting again.
	DefaultAcceptPause = 100 * time.Millisecond

	// DefaultDrainTimeout bounds how long the second copy loop of a
	// finished session may take to notice its closed socket.
	DefaultDrainTimeout = 2 * time.Second

	// DefaultVerbosity shows accept/connect/close status lines.
	DefaultVerbosity = 1
)
