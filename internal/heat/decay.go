package heat

import (
	"log"
	"sync"
	"time"
)

// DecayScheduler periodically decays every tracked user's score. This models
// forgiveness of past behavior: scores drift back toward zero while a user
// stays clean, so stale heat cannot keep a user at a high tier forever.
//
// The scheduler runs as a background goroutine and is the only scheduled
// operation in the engine. Decay applies to quarantined users too; release
// decisions stay with operators.
type DecayScheduler struct {
	mu     sync.Mutex
	engine *Engine
	config DecayConfig
	stopCh chan struct{}
	logger *log.Logger
}

// DecayConfig holds the configuration for the decay scheduler.
type DecayConfig struct {
	// Interval between decay sweeps
	Interval time.Duration

	// Rate subtracted from every positive score per sweep
	Rate float64
}

// DefaultDecayConfig returns the standard hourly decay.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		Interval: 1 * time.Hour,
		Rate:     2.0,
	}
}

// NewDecayScheduler creates and starts a new decay scheduler.
func NewDecayScheduler(engine *Engine, cfg DecayConfig) *DecayScheduler {
	def := DefaultDecayConfig()
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Rate == 0 {
		cfg.Rate = def.Rate
	}

	ds := &DecayScheduler{
		engine: engine,
		config: cfg,
		stopCh: make(chan struct{}),
		logger: log.New(log.Writer(), "[DECAY] ", log.LstdFlags),
	}

	go ds.run()
	return ds
}

// Stop gracefully stops the decay scheduler.
func (ds *DecayScheduler) Stop() {
	close(ds.stopCh)
}

func (ds *DecayScheduler) run() {
	ticker := time.NewTicker(ds.config.Interval)
	defer ticker.Stop()

	ds.logger.Printf("started heat decay scheduler (interval=%s, rate=%.1f)",
		ds.config.Interval, ds.config.Rate)

	for {
		select {
		case <-ticker.C:
			ds.sweep()
		case <-ds.stopCh:
			ds.logger.Println("decay scheduler stopped")
			return
		}
	}
}

func (ds *DecayScheduler) sweep() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	decayed := ds.engine.DecayAll(ds.config.Rate)
	if decayed > 0 {
		ds.logger.Printf("sweep complete: %d users decayed by %.1f", decayed, ds.config.Rate)
	}
}
