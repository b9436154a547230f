package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatsUpdater refreshes the per-platform publishing stats on a ticker and
// prunes monitoring rows older than the retention window.
type StatsUpdater struct {
	monitoring    *MonitoringService
	logger        *zap.Logger
	interval      time.Duration
	retentionDays int

	stopOnce sync.Once
	done     chan struct{}
}

func NewStatsUpdater(monitoring *MonitoringService, logger *zap.Logger, interval time.Duration, retentionDays int) *StatsUpdater {
	return &StatsUpdater{
		monitoring:    monitoring,
		logger:        logger,
		interval:      interval,
		retentionDays: retentionDays,
		done:          make(chan struct{}),
	}
}

// Start refreshes once right away, then every interval until Stop or ctx ends.
func (s *StatsUpdater) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Stats updater is disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("Starting stats updater", zap.Duration("interval", s.interval))

		s.RunOnce()
		for {
			select {
			case <-s.done:
				s.logger.Info("Stats updater stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Stats updater stopped due to context cancellation")
				return
			case <-ticker.C:
				s.RunOnce()
			}
		}
	}()
}

func (s *StatsUpdater) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// RunOnce recomputes today's stats and applies retention. Failures are logged.
func (s *StatsUpdater) RunOnce() {
	start := time.Now()

	if err := s.monitoring.UpdatePlatformStats(); err != nil {
		s.logger.Error("Failed to update platform stats", zap.Error(err))
	}

	if s.retentionDays > 0 {
		if err := s.monitoring.CleanupOldData(s.retentionDays); err != nil {
			s.logger.Error("Failed to cleanup old monitoring data", zap.Error(err))
		}
	}

	s.logger.Debug("Platform stats refreshed", zap.Duration("duration", time.Since(start)))
}
