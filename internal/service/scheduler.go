package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/config"
)

// Scheduler triggers the dispatcher in-process. Deployments driving the
// cron endpoint from outside leave it disabled.
type Scheduler struct {
	config *config.SchedulerConfig
	logger *zap.Logger
	engine *Engine
	cron   *cron.Cron
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, engine *Engine) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		config: cfg,
		logger: logger,
		engine: engine,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Spec, func() { s.runDispatch(ctx) }); err != nil {
		s.logger.Error("Invalid scheduler spec", zap.String("spec", s.config.Spec), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("spec", s.config.Spec))
	s.cron.Start()
	return nil
}

// Stop waits for a running dispatch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runDispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	summary, err := s.engine.RunSchedule(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Scheduled dispatch failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}
	if summary.Processed > 0 {
		s.logger.Info("Scheduled dispatch completed",
			zap.Int("processed", summary.Processed),
			zap.Duration("duration", duration))
	}
}

// cronLogger routes robfig/cron logs to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
