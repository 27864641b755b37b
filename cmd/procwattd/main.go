//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/procwatt/procwatt/internal/config"
	"github.com/procwatt/procwatt/internal/logger"
	"github.com/procwatt/procwatt/internal/pid"
	"github.com/procwatt/procwatt/internal/power"
	"github.com/procwatt/procwatt/internal/proc"
	"github.com/procwatt/procwatt/internal/sampler"
	"github.com/procwatt/procwatt/internal/series"
	"github.com/procwatt/procwatt/internal/sink"
	"github.com/procwatt/procwatt/internal/tracker"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	host := proc.Host()
	logger.Info().
		Str("hostname", host.Hostname).
		Int("cores", host.Cores).
		Float64("jiffy_seconds", host.JiffySeconds).
		Float64("total_power_draw_watts", cfg.TotalPowerDraw).
		Str("attribution", cfg.Attribution).
		Msg("Starting procwattd")

	s, memory, history, err := buildPipeline(host)
	if err != nil {
		logger.FatalWithCode(err).Msg("failed to build sampling pipeline")
	}
	defer func() {
		if err := history.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close history sink")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := s.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in sampler loop")
	}

	logSummary(s, memory)
	logger.Info().Msg("Exiting...")
}

func buildPipeline(host proc.HostInfo) (*sampler.Sampler, *sink.Memory, sink.History, error) {
	model, err := power.NewModel(power.Config{
		TotalDrawWatts: cfg.TotalPowerDraw,
		CoreCount:      cfg.CoreCount,
		Attribution:    power.Attribution(cfg.Attribution),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	governor, err := series.NewGovernor(series.Policy{
		IncludePID:  cfg.IncludePID,
		IncludeName: cfg.IncludeName,
		MaxSeries:   cfg.MaxSeries,
		Collision:   series.Strategy(cfg.CollisionStrategy),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	history, err := sink.NewHistory(sink.HistoryConfig{
		DBPath:  cfg.Database,
		Enabled: cfg.History,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	memory := sink.NewMemory(host.Labels())

	s, err := sampler.New(
		sampler.Config{
			Interval:    cfg.Interval,
			TickTimeout: cfg.TickTimeout,
		},
		proc.NewSource(),
		tracker.New(cfg.GraceTicks),
		model,
		governor,
		sink.NewMulti(memory, history),
	)
	if err != nil {
		history.Close()
		return nil, nil, nil, err
	}

	return s, memory, history, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logSummary(s *sampler.Sampler, memory *sink.Memory) {
	stats := s.Stats()
	var joules float64
	for _, j := range memory.Energy() {
		joules += j
	}

	logger.Info().
		Uint64("ticks", stats.Ticks).
		Uint64("skipped_ticks", stats.SkippedTicks).
		Uint64("dropped_samples", stats.DroppedSamples).
		Uint64("publish_errors", stats.PublishErrors).
		Uint64("published_series", stats.Published).
		Float64("estimated_joules", joules).
		Msg("Sampler stopped")
}
