package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/xaoc-labs/modcore/internal/api"
	"github.com/xaoc-labs/modcore/internal/config"
	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/detector"
	"github.com/xaoc-labs/modcore/internal/dispatch"
	"github.com/xaoc-labs/modcore/internal/events"
	"github.com/xaoc-labs/modcore/internal/heat"
	"github.com/xaoc-labs/modcore/internal/quarantine"
	"github.com/xaoc-labs/modcore/internal/screen"
	"github.com/xaoc-labs/modcore/internal/store"
)

func main() {
	log.Println("Starting modcore moderation service...")

	// .env is optional; real deployments configure via files/env directly.
	_ = godotenv.Load()

	configPath := envOr("MODCORE_CONFIG", "config.yaml")
	communitiesPath := envOr("MODCORE_COMMUNITIES_CONFIG", "communities.yaml")

	manager, err := config.NewManager(configPath, communitiesPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	cfg := manager.Global()

	clock := core.SystemClock()

	// Risk core
	riskStore := store.NewRiskStore(clock)
	engine := heat.NewEngine(riskStore, clock, heat.Config{
		QuarantineThreshold: cfg.Heat.QuarantineThreshold,
		TimeoutThreshold:    cfg.Heat.TimeoutThreshold,
		HighRiskThreshold:   cfg.Heat.HighRiskThreshold,
	})

	// Behavioral detectors
	messages := detector.NewMessageDetector(clock, detector.MessageConfig{
		WindowCapacity:   cfg.Detectors.Message.WindowCapacity,
		Interval:         cfg.Detectors.Message.Interval(),
		MaxPerInterval:   cfg.Detectors.Message.MaxPerInterval,
		MaxIdentical:     cfg.Detectors.Message.MaxIdentical,
		MentionThreshold: cfg.Detectors.Message.MentionThreshold,
		MaxNewlines:      cfg.Detectors.Message.MaxNewlines,
		Retention:        cfg.Detectors.Retention(),
	})
	commands := detector.NewCommandDetector(clock, detector.CommandConfig{
		WindowCapacity: cfg.Detectors.Command.WindowCapacity,
		Interval:       cfg.Detectors.Command.Interval(),
		MaxPerInterval: cfg.Detectors.Command.MaxPerInterval,
		MaxIdentical:   cfg.Detectors.Command.MaxIdentical,
		Retention:      cfg.Detectors.Retention(),
	})

	screens := screen.New(screen.Config{
		HoneypotChannelID: cfg.Screens.HoneypotChannelID,
		InviteLinks:       cfg.Screens.InviteLinksEnabled(),
		ImageBait:         cfg.Screens.ImageBaitEnabled(),
		KickUnderDays:     cfg.Screens.KickUnderDays,
		FlagUnderDays:     cfg.Screens.FlagUnderDays,
	})

	bus := events.NewBus()

	// Containment. The in-memory gateway stands in until a platform
	// adapter (Discord, Matrix, ...) is plugged in; records optionally
	// persist to Redis so restarts keep quarantined users contained.
	var records quarantine.RecordStore = quarantine.NewMemRecordStore()
	if cfg.Redis.Enabled {
		redisRecords, err := quarantine.NewRedisRecordStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("redis unavailable (%v), falling back to in-memory containment records", err)
		} else {
			records = redisRecords
			defer redisRecords.Close()
		}
	}
	gateway := quarantine.NewMemGateway()
	controller := quarantine.NewController(gateway, records, engine, bus)

	sink := dispatch.NewLogSink()
	processor := dispatch.NewProcessor(dispatch.Deps{
		Engine:     engine,
		Messages:   messages,
		Commands:   commands,
		Screens:    screens,
		Controller: controller,
		Actions:    sink,
		Emitter:    bus,
		Clock:      clock,
	}, dispatch.Config{
		MessageTimeout: cfg.Escalation.MessageTimeout(),
		CommandTimeout: cfg.Escalation.CommandTimeout(),
		Warn:           cfg.Escalation.WarnEnabled(),
	})

	// Background maintenance
	decay := heat.NewDecayScheduler(engine, heat.DecayConfig{
		Interval: cfg.Decay.Interval(),
		Rate:     cfg.Decay.Rate,
	})
	defer decay.Stop()

	sweeper := detector.NewSweeper(cfg.Detectors.SweepInterval(), messages, commands)
	defer sweeper.Stop()

	server := api.NewServer(engine, controller, processor, sink, bus, manager)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server failed: %v", err)
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
