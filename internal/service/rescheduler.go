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

type MoveMode string

const (
	// MoveSingle moves only the given job.
	MoveSingle MoveMode = "single"
	// MoveChain moves the main job and recomputes its siblings from the recipes.
	MoveChain MoveMode = "chain"
)

func ParseMoveMode(s string) (MoveMode, error) {
	switch MoveMode(s) {
	case "", MoveSingle:
		return MoveSingle, nil
	case MoveChain:
		return MoveChain, nil
	}
	return "", errors.Validation("unknown move mode %q", s)
}

// Rescheduler handles interactive moves of publish jobs.
type Rescheduler struct {
	db         *gorm.DB
	projectKey string
	recipes    *RecipeStore
	jobs       *JobStore
	logger     *zap.Logger
}

func NewRescheduler(db *gorm.DB, projectKey string, logger *zap.Logger) *Rescheduler {
	return &Rescheduler{
		db:         db,
		projectKey: projectKey,
		recipes:    NewRecipeStore(db, logger),
		jobs:       NewJobStore(db),
		logger:     logger,
	}
}

// Move sets the job's publish time. In chain mode a move of the main
// platform's job also moves every queued or failed sibling to
// newTime + its recipe delay. It returns the jobs that moved.
func (r *Rescheduler) Move(ctx context.Context, jobID string, newTime time.Time, mode MoveMode) ([]models.PublishJob, error) {
	newTime = newTime.UTC()
	var moved []models.PublishJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		jobs := r.jobs.WithTx(tx)

		job, err := jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.Status.Movable() {
			return errors.Validation("job %s is %s and cannot be moved", jobID, job.Status)
		}

		if err := jobs.UpdatePublishAt(ctx, job.ID, newTime); err != nil {
			return err
		}
		job.PublishAt = newTime
		moved = append(moved, *job)

		if mode != MoveChain {
			return nil
		}

		recipes, err := r.recipes.WithTx(tx).Active(ctx, r.projectKey)
		if err != nil {
			return err
		}
		main, delays := splitRecipes(recipes)
		if main == "" || !samePlatform(job.Platform, main) {
			return nil
		}

		siblings, err := jobs.ListByContent(ctx, job.Ref())
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.ID == job.ID || !sib.Status.Movable() {
				continue
			}
			p, err := publisher.ParsePlatform(sib.Platform)
			if err != nil {
				continue
			}
			delay, ok := delays[p]
			if !ok {
				// No active recipe for this platform any more.
				continue
			}
			at := newTime.Add(delay)
			if err := jobs.UpdatePublishAt(ctx, sib.ID, at); err != nil {
				return err
			}
			sib.PublishAt = at
			moved = append(moved, sib)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Job moved",
		zap.String("job_id", jobID),
		zap.Time("publish_at", newTime),
		zap.String("mode", string(mode)),
		zap.Int("moved", len(moved)))
	return moved, nil
}

// splitRecipes returns the main platform and the delay of every non-main one.
func splitRecipes(recipes []models.PublishRecipe) (publisher.Platform, map[publisher.Platform]time.Duration) {
	var main publisher.Platform
	delays := make(map[publisher.Platform]time.Duration, len(recipes))
	for _, rc := range recipes {
		p, err := publisher.ParsePlatform(rc.Platform)
		if err != nil {
			continue
		}
		if rc.IsMain {
			main = p
			continue
		}
		delays[p] = rc.Delay()
	}
	return main, delays
}

func samePlatform(stored string, p publisher.Platform) bool {
	parsed, err := publisher.ParsePlatform(stored)
	return err == nil && parsed == p
}
