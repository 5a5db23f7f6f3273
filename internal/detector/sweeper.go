package detector

import (
	"log"
	"time"
)

// Sweepable is anything with a window-eviction sweep.
type Sweepable interface {
	Sweep() int
}

// Sweeper runs the detectors' window-eviction sweeps on a fixed interval,
// independent of the heat decay schedule. It is the only thing keeping
// idle users' windows from lingering past the retention horizon.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
	stopCh   chan struct{}
	logger   *log.Logger
}

// NewSweeper creates and starts a sweeper over the given targets. A zero
// interval defaults to 5 minutes.
func NewSweeper(interval time.Duration, targets ...Sweepable) *Sweeper {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	s := &Sweeper{
		interval: interval,
		targets:  targets,
		stopCh:   make(chan struct{}),
		logger:   log.New(log.Writer(), "[SWEEP] ", log.LstdFlags),
	}

	go s.run()
	return s
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Printf("started window sweeper (interval=%s, targets=%d)", s.interval, len(s.targets))

	for {
		select {
		case <-ticker.C:
			evicted := 0
			for _, t := range s.targets {
				evicted += t.Sweep()
			}
			if evicted > 0 {
				s.logger.Printf("sweep complete: %d stale window entries evicted", evicted)
			}
		case <-s.stopCh:
			s.logger.Println("window sweeper stopped")
			return
		}
	}
}
