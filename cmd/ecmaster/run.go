// cmd/ecmaster/run.go
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/tamzrod/ecat-master/internal/adapter"
	"github.com/tamzrod/ecat-master/internal/app"
	"github.com/tamzrod/ecat-master/internal/config"
	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/logger"
	"github.com/tamzrod/ecat-master/internal/master"
	"github.com/tamzrod/ecat-master/internal/status"
	"github.com/tamzrod/ecat-master/internal/writer"
)

// run wires a normalized config into a master session and runs the control
// loop until the iteration budget is spent or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	// --------------------
	// Logger
	// --------------------

	log, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: logOut,
	})
	if err != nil {
		return err
	}

	// --------------------
	// Event journal (optional)
	// --------------------

	var events eventlog.Recorder = eventlog.Nop()
	if cfg.EventLog.Path != "" {
		rec, err := eventlog.NewFileRecorder(cfg.EventLog.Path)
		if err != nil {
			return fmt.Errorf("event log: %w", err)
		}
		defer rec.Close()
		events = rec
	}

	// --------------------
	// Adapter
	// --------------------

	a, err := adapter.Build(cfg.Master.Adapter, cfg)
	if err != nil {
		return err
	}

	// --------------------
	// Status publisher (optional)
	// --------------------

	board := status.NewBoard()

	if cfg.Status.Enabled() {
		pub, closePub, err := writer.BuildPublisher(cfg.Status, board, log.With("component", "status"))
		if err != nil {
			return fmt.Errorf("status endpoint: %w", err)
		}

		pubCtx, stopPub := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			pub.Run(pubCtx)
		}()

		// The publisher owes its final writes; the client closes after them.
		defer func() {
			stopPub()
			<-done
			if err := closePub(); err != nil {
				log.Warn("status endpoint close failed", "err", err)
			}
		}()
	}

	// --------------------
	// Bring-up
	// --------------------

	s, err := master.BringUpWithRetry(a, cfg.Master.Interface, master.Options{
		IOMapBytes: cfg.Master.IOMapBytes,
		Timing: master.Timing{
			StateTimeout:   cfg.Master.StateTimeout(),
			ReturnTimeout:  cfg.Master.ReturnTimeout(),
			MonitorTimeout: cfg.Master.MonitorTimeout(),
		},
		Logger: log,
		Events: events,
	}, cfg.Master.BringUpRetries)
	if err != nil {
		return err
	}

	// --------------------
	// Control loop
	// --------------------

	opts := []master.LoopOption{master.WithSlaveSink(board)}
	if t := cfg.Application.Toggle; t != nil {
		opts = append(opts, master.WithApplication(app.NewToggle(*t, s, log)))
	}

	l := master.NewLoop(s, master.LoopConfig{
		Cycle:      cfg.Master.Cycle(),
		Iterations: cfg.Master.Iterations,
		StatsEvery: uint64(cfg.Master.StatsEvery),
	}, opts...)

	l.Run(ctx)
	return nil
}
