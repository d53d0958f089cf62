// erpgate serves ERP backend operations as MCP tools.
//
// It speaks MCP over stdio by default, or over streamable HTTP with
// --transport http. Configuration comes from an optional YAML file,
// overridden by environment variables, overridden by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jonwraymond/erpgate/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	transport  string
	addr       string
	logLevel   string
	format     string
	showVer    bool
}

func parseFlags(args []string, stderr io.Writer) (options, *pflag.FlagSet, error) {
	var o options
	fs := pflag.NewFlagSet("erpgate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.configPath, "config", "c", os.Getenv("ERPGATE_CONFIG"), "path to a YAML config file")
	fs.StringVar(&o.transport, "transport", "", "transport: stdio or http")
	fs.StringVar(&o.addr, "addr", "", "listen address for the http transport")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&o.format, "format", "", "default output format: toon, json or json_compact")
	fs.BoolVar(&o.showVer, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return o, fs, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return o, fs, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return o, fs, nil
}

// apply overrides cfg with the flags that were set.
func (o options) apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("transport") {
		cfg.Server.Transport = strings.ToLower(o.transport)
	}
	if fs.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if fs.Changed("log-level") {
		cfg.Telemetry.LogLevel = strings.ToLower(o.logLevel)
	}
	if fs.Changed("format") {
		cfg.Output.Format = strings.ToLower(o.format)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVer {
		fmt.Fprintf(stdout, "erpgate %s\n", version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, o.configPath)
	if err != nil {
		return err
	}
	o.apply(&cfg, fs)
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := build(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		return a.serveHTTP(ctx)
	default:
		return a.server.ServeStdio(ctx, stdin, stdout, stderr)
	}
}
