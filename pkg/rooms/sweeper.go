package rooms

import (
	"context"
	"time"

	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
)

// Sweeper periodically removes idle rooms from the registry.
// It runs on its own timer, independent of request traffic.
type Sweeper struct {
	reg      *Registry
	interval time.Duration
	log      *logger.Logger
	done     chan struct{}
}

func NewSweeper(reg *Registry, conf config.Rooms, log *logger.Logger) *Sweeper {
	return &Sweeper{reg: reg, interval: conf.SweepInterval, log: log, done: make(chan struct{})}
}

func (s *Sweeper) Run() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.reg.expire()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Sweeper) Shutdown(context.Context) error {
	close(s.done)
	return nil
}

func (s *Sweeper) String() string { return "sweeper::" + s.interval.String() }
