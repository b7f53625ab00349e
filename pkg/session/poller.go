package session

import (
	"sync"
	"time"
)

// poller runs fn on a fixed interval until stopped. Stopping is
// unconditional and idempotent; an fn already in flight finishes on
// its own and its result must be discarded by the caller.
type poller struct {
	interval time.Duration
	cancel   chan struct{}
	once     sync.Once
}

func newPoller(interval time.Duration) *poller {
	return &poller{interval: interval, cancel: make(chan struct{})}
}

func (p *poller) run(fn func()) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-p.cancel:
				return
			}
		}
	}()
}

func (p *poller) stop() { p.once.Do(func() { close(p.cancel) }) }

func (p *poller) stopped() bool {
	select {
	case <-p.cancel:
		return true
	default:
		return false
	}
}
