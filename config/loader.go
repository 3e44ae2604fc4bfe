package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TCPTRACE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TCPTRACE_BIND"); v != "" {
		cfg.BindHost = v
	}
	if v := envDuration("TCPTRACE_RETRY_INTERVAL"); v > 0 {
		cfg.RetryInterval = v
	}
	if v := envInt("TCPTRACE_TIMEOUT"); v > 0 {
		cfg.Timeout = time.Duration(v) * time.Second
	}

	// SSH gateway
	if v := os.Getenv("TCPTRACE_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("TCPTRACE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("TCPTRACE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("TCPTRACE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("TCPTRACE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("TCPTRACE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output.  NO_COLOR is honoured as well, see https://no-color.org.
	if envBool("TCPTRACE_NO_COLOR") || os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
	if envBool("TCPTRACE_NO_TITLE") {
		cfg.NoTitle = true
	}
	if envBool("TCPTRACE_NO_EOF_TRACE") {
		cfg.TraceEOF = false
	}
	if envBool("TCPTRACE_STATS") {
		cfg.Stats = true
	}
	if v := envInt("TCPTRACE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts Go duration syntax ("500ms") or bare seconds.
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}
