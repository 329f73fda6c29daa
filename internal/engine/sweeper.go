package engine

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper drives RunExpirySweep on a fixed wall-clock schedule. A
// sweep that is still running when the next tick fires is skipped
// rather than stacked.
type Sweeper struct {
	engine  *Engine
	cron    *cron.Cron
	spec    string
	timeout time.Duration
}

// NewSweeper builds a sweeper for the engine. spec is a standard cron
// expression (e.g. "*/5 * * * *"); timeout bounds each sweep run.
func NewSweeper(engine *Engine, spec string, timeout time.Duration) *Sweeper {
	return &Sweeper{
		engine: engine,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		spec:    spec,
		timeout: timeout,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("sweeper: scheduled (%s)", s.spec)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	report, err := s.engine.RunExpirySweep(ctx)
	if err != nil {
		log.Printf("sweeper: sweep failed: %v", err)
		return
	}
	if report.Expired > 0 {
		log.Printf("sweeper: expired=%d released=%d left_occupied=%d failed=%d",
			report.Expired, report.Released, report.LeftOccupied, report.Failed)
	}
}
