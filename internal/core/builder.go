package core

import (
	"tcptrace/config"
	"tcptrace/internal/metrics"
	"tcptrace/internal/retry"
	"tcptrace/internal/session"
	"tcptrace/internal/transport"
	"tcptrace/tunnel"
	"tcptrace/util"
)

// Build constructs the relay supervisor from a validated configuration.
// Trace blocks go to tracer; m may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector, tracer session.Tracer) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	broker := &Broker{
		ListenAddr: cfg.ListenAddr(),
		RemoteHost: cfg.RemoteHost,
		RemotePort: cfg.RemotePort,
		Dialer:     buildDialer(cfg, logger, m),
		Retry:      retry.Fixed(cfg.RetryInterval),
		Logger:     logger,
		Metrics:    m,
	}

	return &Supervisor{
		Broker:      broker,
		Tracer:      tracer,
		Logger:      logger,
		Metrics:     m,
		TraceEOF:    cfg.TraceEOF,
		AcceptPause: config.DefaultAcceptPause,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger, m *metrics.Collector) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger, m)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}
