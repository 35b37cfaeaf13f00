package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/strideloop/runcore/internal/bus"
	"github.com/strideloop/runcore/internal/engine"
	"github.com/strideloop/runcore/internal/history"
	"github.com/strideloop/runcore/internal/session"
	"github.com/strideloop/runcore/internal/voice"
	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/redisx"
)

func main() {
	// Initialize configuration and logger
	cfg, log, err := config.Initialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure logger is flushed on exit
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting runcore demo host",
		zap.String("version", "0.1.0"),
		zap.String("environment", cfg.Engine.Environment),
	)

	// Redis is optional: without it the demo runs with in-process events
	// and no run history.
	var redisClient *redisx.Client
	var historyRepo history.Repository
	if url := os.Getenv("REDIS_URL"); url != "" {
		redisClient, err = redisx.NewClient(url, log)
		if err != nil {
			log.Fatal("Failed to initialize Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		historyRepo = history.NewRedisRepository(redisClient.Client)
	}

	busCfg := cfg.Bus
	if redisClient == nil {
		busCfg.Transport = bus.TransportChannel
	}
	eventBus, err := bus.New(busCfg, redisClient, log)
	if err != nil {
		log.Fatal("Failed to initialize event bus", zap.Error(err))
	}
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := eventBus.Run(ctx); err != nil {
			log.Error("Event bus stopped with error", zap.Error(err))
		}
	}()
	<-eventBus.Running()

	goal, err := session.NewGoal(session.GoalFiveK, 0)
	if err != nil {
		log.Fatal("Invalid demo goal", zap.Error(err))
	}

	eng := engine.New(cfg, engine.Options{
		RunnerID: "demo-runner",
		Goal:     goal,
		History:  historyRepo,
		Bus:      eventBus,
		Player:   voice.NewLogPlayer(log),
	}, log)

	if err := eng.Start(ctx); err != nil {
		log.Fatal("Failed to start run session", zap.Error(err))
	}

	_ = eng.Announce(ctx, "Session started. Have a good run!", true)

	// Replay a synthetic GPS trace: a steady 3 m/s jog due north, one fix
	// per second, with a heart-rate ramp alongside.
	go func() {
		const degPerMeter = 1.0 / 111194.92664455873
		start := time.Now()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		var meters float64
		bpm := 110
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				meters += 3
				eng.SubmitPosition(session.RawSample{
					Lat:       39.0 + meters*degPerMeter,
					Lon:       116.0,
					AccuracyM: 8,
					Time:      now,
				})
				if bpm < 168 {
					bpm++
				}
				eng.SubmitHeartRate(bpm)
				if int(now.Sub(start).Seconds())%15 == 0 {
					st := eng.Status()
					log.Info("Live metrics",
						zap.Float64("distance_m", st.Metrics.DistanceM),
						zap.Duration("duration", st.Metrics.Duration),
						zap.Float64("pace_min_per_km", st.Metrics.PaceMinPerKm))
				}
			}
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	summary, err := eng.Stop(ctx)
	if err != nil {
		log.Error("Failed to stop session", zap.Error(err))
		os.Exit(1)
	}
	cancel()

	log.Info("Run complete",
		zap.Float64("distance_m", summary.Metrics.DistanceM),
		zap.Duration("duration", summary.Metrics.Duration),
		zap.Float64("calories", summary.Metrics.Calories),
		zap.Int("waypoints", len(summary.Track)))
}
