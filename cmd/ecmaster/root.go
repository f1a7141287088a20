// cmd/ecmaster/root.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tamzrod/ecat-master/internal/adapter"
	"github.com/tamzrod/ecat-master/internal/config"
)

// flags holds the command line overrides of the config file.
type flags struct {
	configPath string
	adapter    string
	iterations uint64
	cycleUs    int
	logLevel   string
	logFormat  string
	eventLog   string
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "ecmaster <interface>",
		Short: "Fieldbus master: bring the segment to OPERATIONAL and run the cyclic exchange",
		Long: `ecmaster opens the network on <interface>, discovers and maps every slave,
drives the segment to OPERATIONAL and runs the fixed period process data
exchange. A health monitor repairs slaves that drop out of OPERATIONAL.

Exit codes:
  0  success
  1  usage, configuration or other failure
  2  network adapter unknown or unavailable
  3  no slaves found
  4  process data mapping failure
  5  OPERATIONAL not reached`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	fl := root.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fl.StringVarP(&f.adapter, "adapter", "a", "", "network adapter ("+config.DefaultAdapter+" by default)")
	fl.Uint64VarP(&f.iterations, "iterations", "n", 0, "cycles to run, 0 = until interrupted")
	fl.IntVar(&f.cycleUs, "cycle-us", 0, "cycle period in microseconds")
	fl.StringVar(&f.logLevel, "log-level", "", "debug | info | warn | error")
	fl.StringVar(&f.logFormat, "log-format", "", "json | console")
	fl.StringVar(&f.eventLog, "event-log", "", "append CBOR events to this file")

	root.AddCommand(newAdaptersCmd())
	root.SetContext(context.Background())
	return root
}

func newAdaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the network adapters linked into this binary",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, n := range adapter.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}
}

// loadConfig reads the config file, applies flag overrides, then validates
// and normalizes the result.
func loadConfig(cmd *cobra.Command, f flags, args []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	// --------------------
	// Flag overrides
	// --------------------

	fl := cmd.Flags()
	if len(args) == 1 {
		cfg.Master.Interface = args[0]
	}
	if fl.Changed("adapter") {
		cfg.Master.Adapter = f.adapter
	}
	if fl.Changed("iterations") {
		cfg.Master.Iterations = f.iterations
	}
	if fl.Changed("cycle-us") {
		cfg.Master.CycleUs = f.cycleUs
	}
	if fl.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if fl.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if fl.Changed("event-log") {
		cfg.EventLog.Path = f.eventLog
	}

	if cfg.Master.Interface == "" {
		return nil, errors.New("usage: ecmaster <interface> (or master.interface in the config)")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}
