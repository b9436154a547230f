package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

// ComputeScheduleTimes assigns base to the main active recipe and
// base+delay to every other active recipe.
func ComputeScheduleTimes(base time.Time, recipes []models.PublishRecipe) (map[publisher.Platform]time.Time, error) {
	var (
		active []models.PublishRecipe
		mains  int
	)
	for _, r := range recipes {
		if !r.IsActive {
			continue
		}
		active = append(active, r)
		if r.IsMain {
			mains++
		}
	}

	switch {
	case len(active) == 0:
		return nil, errors.Validation("no active publish recipes")
	case mains == 0:
		return nil, errors.Validation("no main publish recipe among %d active", len(active))
	case mains > 1:
		return nil, errors.Validation("%d active recipes are marked main, expected one", mains)
	}

	times := make(map[publisher.Platform]time.Time, len(active))
	for _, r := range active {
		p, err := publisher.ParsePlatform(r.Platform)
		if err != nil {
			return nil, err
		}
		if r.IsMain {
			times[p] = base
		} else {
			times[p] = base.Add(r.Delay())
		}
	}
	return times, nil
}

// Planner turns an approved content item into queued publish jobs.
type Planner struct {
	db         *gorm.DB
	projectKey string
	recipes    *RecipeStore
	content    *ContentStore
	jobs       *JobStore
	logger     *zap.Logger
	now        func() time.Time
}

func NewPlanner(db *gorm.DB, projectKey string, logger *zap.Logger) *Planner {
	return &Planner{
		db:         db,
		projectKey: projectKey,
		recipes:    NewRecipeStore(db, logger),
		content:    NewContentStore(db),
		jobs:       NewJobStore(db),
		logger:     logger,
		now:        time.Now,
	}
}

// Schedule creates one queued job per active recipe. A nil base means now.
// Calling it again schedules the item again.
func (p *Planner) Schedule(ctx context.Context, ref models.ContentRef, base *time.Time) ([]models.PublishJob, error) {
	item, err := p.content.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !item.Approved {
		return nil, errors.Validation("%s is not approved", ref)
	}

	start := p.now()
	if base != nil {
		start = *base
	}
	start = start.UTC()

	var jobs []models.PublishJob
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipes, err := p.recipes.WithTx(tx).Active(ctx, p.projectKey)
		if err != nil {
			return err
		}
		times, err := ComputeScheduleTimes(start, recipes)
		if err != nil {
			return err
		}

		jobs = make([]models.PublishJob, 0, len(times))
		for _, platform := range publisher.Platforms {
			at, ok := times[platform]
			if !ok {
				continue
			}
			job := models.PublishJob{
				Platform:  platform.String(),
				Status:    models.JobQueued,
				PublishAt: at,
			}
			job.SetRef(ref)
			jobs = append(jobs, job)
		}
		return p.jobs.WithTx(tx).CreateBatch(ctx, jobs)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Content scheduled",
		zap.String("content_id", ref.String()),
		zap.Time("base", start),
		zap.Int("jobs", len(jobs)))
	return jobs, nil
}
