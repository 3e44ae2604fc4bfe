// Package config defines the runtime configuration for tcptrace and
// provides helpers for parsing the positional arguments and tunnel
// specifications.
package config

import (
	"net"
	"regexp"
	"strconv"
	"time"

	ncerr "tcptrace/internal/errors"
)

// Config holds every tuneable for a tcptrace process.  It is built once
// by the CLI layer and passed by pointer to the broker, supervisor and
// tracer; nothing mutates it after Validate succeeds.
type Config struct {
	// ── Endpoints ────────────────────────────────────────────────────
	ListenPort int    // inbound port, 0 picks an ephemeral port
	BindHost   string // listen host, empty means all interfaces
	RemoteHost string // dotted-quad IPv4 of the relay target
	RemotePort int

	// ── Outbound connect policy ──────────────────────────────────────
	RetryInterval time.Duration // fixed pause between dial attempts
	Timeout       time.Duration // per-attempt dial timeout

	// ── SSH gateway for outbound dials ───────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	TraceEOF bool // trace the terminating empty client→server chunk
	NoColor  bool
	NoTitle  bool
	Stats    bool // print a metrics snapshot on exit
	Verbose  int
	Quiet    bool
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		RetryInterval: DefaultRetryInterval,
		Timeout:       DefaultConnTimeout,
		TraceEOF:      true,
		Verbose:       DefaultVerbosity,
	}
}

// ListenAddr returns the host:port the broker binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.ListenPort))
}

// RemoteAddr returns the host:port the broker dials.
func (c *Config) RemoteAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

// Verbosity folds -q and -v into a single logger level.
func (c *Config) Verbosity() int {
	if c.Quiet {
		return 0
	}
	return c.Verbose
}

// ── Positional argument parsers ──────────────────────────────────────

// ParseListenPort accepts an integer in 0-65535.
func ParseListenPort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ncerr.ConfigError{
			Field:   "<inboundPort>",
			Value:   s,
			Message: "not an integer",
		}
	}
	if port < 0 || port > 65535 {
		return 0, &ncerr.ConfigError{
			Field:   "<inboundPort>",
			Value:   s,
			Message: "out of range 0-65535",
		}
	}
	return port, nil
}

// remoteRe matches a dotted-quad address followed by a port.
var remoteRe = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d{1,5})$`)

// ParseRemoteSpec splits "a.b.c.d:port" and checks that the address is
// a real IPv4 address and the port is in 1-65535.
func ParseRemoteSpec(spec string) (host string, port int, err error) {
	m := remoteRe.FindStringSubmatch(spec)
	if m == nil {
		return "", 0, &ncerr.ConfigError{
			Field:   "<outboundAddress:outboundPort>",
			Value:   spec,
			Message: "expected an IPv4 address and port",
			Hint:    "for example 192.168.1.10:8080",
		}
	}
	ip := net.ParseIP(m[1])
	if ip == nil || ip.To4() == nil {
		return "", 0, &ncerr.ConfigError{
			Field:   "<outboundAddress:outboundPort>",
			Value:   spec,
			Message: "not a valid IPv4 address",
		}
	}
	port, err = strconv.Atoi(m[2])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, &ncerr.ConfigError{
			Field:   "<outboundAddress:outboundPort>",
			Value:   spec,
			Message: "port out of range 1-65535",
		}
	}
	return ip.To4().String(), port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, &ncerr.ConfigError{
			Field:   "--tunnel",
			Value:   spec,
			Message: "expected [user@]host[:port]",
		}
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, &ncerr.ConfigError{
				Field:   "--tunnel",
				Value:   spec,
				Message: "tunnel port out of range 1-65535",
			}
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return &ncerr.ConfigError{Field: "<inboundPort>", Value: c.ListenPort, Message: "out of range 0-65535"}
	}
	if c.RemoteHost == "" {
		return &ncerr.ConfigError{
			Field:   "<outboundAddress:outboundPort>",
			Message: "is required",
			Hint:    "usage: tcptrace <inboundPort> <outboundAddress:outboundPort>",
		}
	}
	if ip := net.ParseIP(c.RemoteHost); ip == nil || ip.To4() == nil {
		return &ncerr.ConfigError{Field: "<outboundAddress:outboundPort>", Value: c.RemoteHost, Message: "not a valid IPv4 address"}
	}
	if c.RemotePort < 1 || c.RemotePort > 65535 {
		return &ncerr.ConfigError{Field: "<outboundAddress:outboundPort>", Value: c.RemotePort, Message: "port out of range 1-65535"}
	}
	if c.BindHost != "" && net.ParseIP(c.BindHost) == nil {
		return &ncerr.ConfigError{Field: "--bind", Value: c.BindHost, Message: "not an IP address"}
	}
	if c.RetryInterval <= 0 {
		return &ncerr.ConfigError{Field: "--retry-interval", Value: c.RetryInterval, Message: "must be positive"}
	}
	if c.Timeout < 0 {
		return &ncerr.ConfigError{Field: "--timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "--tunnel", Message: "tunnel host is required"}
	}
	if !c.TunnelEnabled && (c.SSHKeyPath != "" || c.SSHPassword || c.UseSSHAgent) {
		return &ncerr.ConfigError{
			Field:   "--ssh-key",
			Message: "SSH options need a gateway",
			Hint:    "add -T user@gateway",
		}
	}
	return nil
}
