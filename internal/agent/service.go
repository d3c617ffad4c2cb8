package agent

import (
	"context"
	"log/slog"
	"time"
)

// Service runs the collect-and-send loop on a fixed interval until its
// context is cancelled.
type Service struct {
	collector   *Collector
	transmitter *Transmitter
	interval    time.Duration
	logger      *slog.Logger
}

// NewService wires a collector and transmitter into a periodic loop.
func NewService(collector *Collector, transmitter *Transmitter, interval time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		collector:   collector,
		transmitter: transmitter,
		interval:    interval,
		logger:      logger,
	}
}

// Run collects and sends immediately, then on every interval tick. A
// failed cycle is logged and the loop keeps its schedule.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("agent started", "interval", s.interval)
	s.cycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("agent stopping")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	metrics, err := s.collector.Collect(ctx)
	if err != nil {
		s.logger.Error("metrics collection failed", "err", err)
		return
	}
	if err := s.transmitter.Send(ctx, metrics); err != nil {
		s.logger.Error("metrics transmission failed", "err", err)
		return
	}
	s.logger.Debug("metrics sent",
		"cpu", metrics.CPUUsage,
		"memory_pct", metrics.Memory.Percentage,
		"failed_services", len(metrics.FailedServices))
}
