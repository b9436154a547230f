package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
)

const DefaultConcurrency = 8

// JobRunner processes one job. Implemented by *Processor.
type JobRunner interface {
	Process(ctx context.Context, jobID string, settings publisher.Settings, force bool) JobOutcome
}

// Summary reports one dispatcher invocation.
type Summary struct {
	Processed int          `json:"processed"`
	Results   []JobOutcome `json:"results"`
}

// Dispatcher picks due jobs and runs them: site jobs one after another in
// publish order, then every other job concurrently. It keeps no state between
// invocations.
type Dispatcher struct {
	jobs        *JobStore
	runner      JobRunner
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewDispatcher(jobs *JobStore, runner JobRunner, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		jobs:        jobs,
		runner:      runner,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// CheckSchedule runs every queued job whose publish time has passed.
func (d *Dispatcher) CheckSchedule(ctx context.Context, settings publisher.Settings) (Summary, error) {
	due, err := d.jobs.ListDue(ctx, d.now())
	if err != nil {
		return Summary{}, err
	}
	if len(due) == 0 {
		return Summary{Results: []JobOutcome{}}, nil
	}

	var site, social []models.PublishJob
	for _, job := range due {
		if p, err := publisher.ParsePlatform(job.Platform); err == nil && p.IsSiteClass() {
			site = append(site, job)
		} else {
			social = append(social, job)
		}
	}

	d.logger.Info("Dispatching due jobs",
		zap.Int("site", len(site)),
		zap.Int("social", len(social)))

	results := make([]JobOutcome, 0, len(due))
	// Social posts link back to the site URL, so the site goes first.
	for _, job := range site {
		results = append(results, d.runner.Process(ctx, job.ID, settings, false))
	}

	ids := make([]string, len(social))
	for i, job := range social {
		ids[i] = job.ID
	}
	results = append(results, d.fanOut(ctx, ids, settings, false)...)

	return Summary{Processed: len(results), Results: results}, nil
}

// ForceDispatch runs exactly the given jobs concurrently, retrying failed
// ones. Unknown or already published ids come back as skipped.
func (d *Dispatcher) ForceDispatch(ctx context.Context, ids []string, settings publisher.Settings) Summary {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	d.logger.Info("Force dispatching jobs", zap.Strings("job_ids", unique))
	results := d.fanOut(ctx, unique, settings, true)
	return Summary{Processed: len(results), Results: results}
}

// fanOut processes ids with bounded concurrency and waits for all of them.
// Results keep the order of ids.
func (d *Dispatcher) fanOut(ctx context.Context, ids []string, settings publisher.Settings, force bool) []JobOutcome {
	results := make([]JobOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = d.runner.Process(ctx, id, settings, force)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
