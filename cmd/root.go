// Package cmd wires up the CLI flags and starts the relay supervisor.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/muesli/termenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"tcptrace/config"
	"tcptrace/internal/core"
	ncerr "tcptrace/internal/errors"
	"tcptrace/internal/metrics"
	"tcptrace/internal/trace"
	"tcptrace/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tcptrace/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the relay until ctx is cancelled.  Trace
// blocks go to stdout; status lines go to stderr.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.New()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("tcptrace", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── endpoints ────────────────────────────────────────────────
	fs.StringVar(&cfg.BindHost, "bind", cfg.BindHost, "Listen on this address only (default all interfaces)")
	fs.DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "Pause between outbound connect attempts")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Per-attempt dial timeout in seconds (0 = none)")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Dial the target through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var noEOFTrace bool
	fs.BoolVar(&noEOFTrace, "no-eof-trace", !cfg.TraceEOF, "Do not trace the empty block when the client disconnects")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable coloured output")
	fs.BoolVar(&cfg.NoTitle, "no-title", cfg.NoTitle, "Do not set the terminal window title")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print a JSON metrics snapshot on exit")
	var verbosity int
	fs.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Only print errors")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "Validate arguments and print the plan without listening")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "tcptrace %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.TraceEOF = !noEOFTrace
	if verbosity > 0 {
		// -v counts up from the normal level.
		cfg.Verbose = config.DefaultVerbosity + verbosity
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return err
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		printPlan(stdout, cfg)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbosity())
	logger.SetOutput(stderr)
	if !cfg.NoColor {
		logger.SetColor(termenv.NewOutput(stderr))
	}

	m := metrics.New()
	opts := []trace.Option{trace.WithMetrics(m)}
	if !cfg.NoColor {
		opts = append(opts, trace.WithColor(termenv.NewOutput(stdout)))
	}
	tracer := trace.New(stdout, opts...)

	sup, err := core.Build(cfg, logger, m, tracer)
	if err != nil {
		return err
	}

	if !cfg.NoTitle && isTerminal(stdout) {
		title := termenv.NewOutput(stdout)
		title.SetWindowTitle(idleTitle(cfg))
		sup.OnSession = func(peer string) {
			title.SetWindowTitle(sessionTitle(cfg, peer))
		}
	}

	err = sup.Run(ctx)

	if cfg.Stats {
		fmt.Fprintln(stderr, m.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads <inboundPort> <outboundAddress:outboundPort>.
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) != 2 {
		return &ncerr.ConfigError{
			Field:   "arguments",
			Value:   len(remaining),
			Message: "expected exactly two",
			Hint:    "usage: tcptrace <inboundPort> <outboundAddress:outboundPort>",
		}
	}

	port, err := config.ParseListenPort(remaining[0])
	if err != nil {
		return err
	}
	host, remotePort, err := config.ParseRemoteSpec(remaining[1])
	if err != nil {
		return err
	}

	cfg.ListenPort = port
	cfg.RemoteHost = host
	cfg.RemotePort = remotePort
	return nil
}

func idleTitle(cfg *config.Config) string {
	return fmt.Sprintf("%d -> %s", cfg.ListenPort, cfg.RemoteAddr())
}

func sessionTitle(cfg *config.Config, peer string) string {
	return fmt.Sprintf("%s:%d -> %s", peer, cfg.ListenPort, cfg.RemoteAddr())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printPlan(w io.Writer, cfg *config.Config) {
	via := "direct"
	if cfg.TunnelEnabled {
		via = "ssh " + util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort)
		if cfg.TunnelUser != "" {
			via = "ssh " + cfg.TunnelUser + "@" + util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort)
		}
	}
	fmt.Fprintf(w, "listen   %s\n", cfg.ListenAddr())
	fmt.Fprintf(w, "target   %s (%s)\n", cfg.RemoteAddr(), via)
	fmt.Fprintf(w, "retry    every %s, forever\n", cfg.RetryInterval)
	fmt.Fprintf(w, "timeout  %s\n", timeoutLabel(cfg.Timeout))
	fmt.Fprintf(w, "eof      %s\n", strconv.FormatBool(cfg.TraceEOF))
}

func timeoutLabel(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `tcptrace – TCP Relay Tracer v%s

Relays one TCP client at a time to a fixed target and prints every
chunk in hex, ASCII and decimal.

Usage:
  tcptrace [options] <inboundPort> <outboundAddress:outboundPort>

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  tcptrace 8080 10.0.0.5:80                   Trace HTTP to 10.0.0.5
  tcptrace --bind 127.0.0.1 5433 10.0.0.9:5432
  tcptrace -T admin@bastion 6380 10.1.2.3:6379  Reach the target via SSH
  tcptrace --no-color 8080 10.0.0.5:80 > trace.log
`)
}
