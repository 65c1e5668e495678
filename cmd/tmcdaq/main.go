// Command tmcdaq runs a USBTMC data-acquisition instrument.
//
// The instrument serves command messages and sample data over a USB
// gadget (Linux FunctionFS) or over an in-process loopback bus, with a
// simulated analog front end producing the samples.
//
// Usage:
//
//	tmcdaq [global options] run
//	tmcdaq [global options] check-config
//
// Global options:
//
//	--config, -c path     YAML configuration file
//	--log-level level     debug, info, warn or error
//	--log-format format   text or json
//	--metrics-addr addr   serve /metrics, /healthz and /status on addr
//	--cpu-profile path    write a CPU profile (profile builds only)
//	--heap-profile path   write a heap profile on exit (profile builds only)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"

	"github.com/ardnew/tmcdaq/pkg"
	"github.com/ardnew/tmcdaq/pkg/config"
	"github.com/ardnew/tmcdaq/pkg/prof"
)

const version = "v0.1.0"

// component identifies this executable for structured logging.
const component = pkg.ComponentDevice

func main() {
	if err := newApp().Run(os.Args); err != nil {
		pkg.LogError(component, "tmcdaq failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tmcdaq",
		Usage:   "USBTMC data-acquisition instrument",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"TMCDAQ_CONFIG"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text, json)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "listen address for the metrics and status endpoints",
			},
			&cli.StringFlag{
				Name:  "cpu-profile",
				Usage: "write a CPU profile to this file (profile builds only)",
			},
			&cli.StringFlag{
				Name:  "heap-profile",
				Usage: "write a heap profile to this file on exit (profile builds only)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "serve the instrument until interrupted",
				Action: runAction,
			},
			{
				Name:   "check-config",
				Usage:  "validate the configuration and print it with defaults applied",
				Action: checkConfigAction,
			},
		},
	}
}

// loadConfig reads the configuration file, if any, applies flag overrides,
// then validates and normalizes the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Listen = c.String("metrics-addr")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

// setupLogging applies the configured level and format.
func setupLogging(cfg *config.Config) error {
	level, err := pkg.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)
	return nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	inst, err := newInstrument(cfg)
	if err != nil {
		return err
	}

	stopProfiling, err := startProfiling(c.String("cpu-profile"), c.String("heap-profile"))
	if err != nil {
		return err
	}
	defer stopProfiling()

	ctx, stop := signalContext(c.Context)
	defer stop()

	pkg.LogInfo(component, "starting instrument",
		"hal", cfg.HAL.Kind,
		"bulkIn", cfg.USBTMC.BulkIn,
		"bulkOut", cfg.USBTMC.BulkOut,
		"metrics", cfg.Metrics.Listen)

	if err := inst.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	pkg.LogInfo(component, "instrument stopped")
	return nil
}

// startProfiling starts the requested profiles and returns the function that
// finishes them.
func startProfiling(cpuPath, heapPath string) (func(), error) {
	if (cpuPath != "" || heapPath != "") && !prof.Enabled {
		pkg.LogWarn(component, "profiling requested but not compiled in; rebuild with -tags profile")
	}
	if cpuPath != "" {
		if err := prof.StartCPU(cpuPath); err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
	}
	return func() {
		prof.StopCPU()
		if heapPath == "" {
			return
		}
		if err := prof.Write(prof.ProfileHeap, heapPath); err != nil {
			pkg.LogWarn(component, "heap profile", "error", err)
		}
	}, nil
}

func checkConfigAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}
