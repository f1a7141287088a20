// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/ecat-master/internal/config"
	"github.com/tamzrod/ecat-master/internal/logger"
	"github.com/tamzrod/ecat-master/internal/status"
	wmodbus "github.com/tamzrod/ecat-master/internal/writer/modbus"
)

// BuildPlan converts the status config into a StatusPlan.
// Assumes config has already passed validation.
func BuildPlan(sc cfg.StatusConfig) (StatusPlan, error) {
	if !sc.Enabled() {
		return StatusPlan{}, errors.New("writer: status endpoint required")
	}
	return StatusPlan{
		Endpoint: sc.Endpoint,
		UnitID:   sc.UnitID,
		BaseSlot: sc.BaseSlot,
	}, nil
}

// BuildPublisher connects the status endpoint (fail fast at startup) and
// returns a publisher reading board, plus its closer.
func BuildPublisher(sc cfg.StatusConfig, board *status.Board, log logger.Logger) (*Publisher, func() error, error) {
	plan, err := BuildPlan(sc)
	if err != nil {
		return nil, nil, err
	}

	cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: sc.Endpoint,
		Timeout:  time.Duration(sc.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	return NewPublisher(plan, board, cli, log), cli.Close, nil
}
