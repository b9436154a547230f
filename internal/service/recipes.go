package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

// RecipeStore persists the per-project publish recipes.
type RecipeStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecipeStore(db *gorm.DB, logger *zap.Logger) *RecipeStore {
	return &RecipeStore{db: db, logger: logger}
}

// WithTx returns a store bound to tx.
func (s *RecipeStore) WithTx(tx *gorm.DB) *RecipeStore {
	return &RecipeStore{db: tx, logger: s.logger}
}

// List returns every recipe of the project, active or not.
func (s *RecipeStore) List(ctx context.Context, projectKey string) ([]models.PublishRecipe, error) {
	var recipes []models.PublishRecipe
	if err := s.db.WithContext(ctx).
		Where("project_key = ?", projectKey).
		Order("is_main desc, delay_hours, platform").
		Find(&recipes).Error; err != nil {
		return nil, errors.Storage(err, "list recipes")
	}
	return recipes, nil
}

// Active returns the active recipes of the project.
func (s *RecipeStore) Active(ctx context.Context, projectKey string) ([]models.PublishRecipe, error) {
	var recipes []models.PublishRecipe
	if err := s.db.WithContext(ctx).
		Where("project_key = ? AND is_active = ?", projectKey, true).
		Order("is_main desc, delay_hours, platform").
		Find(&recipes).Error; err != nil {
		return nil, errors.Storage(err, "list active recipes")
	}
	return recipes, nil
}

// Save upserts the recipe for (project, platform). An active main recipe
// demotes every other recipe of the project in the same transaction.
func (s *RecipeStore) Save(ctx context.Context, recipe *models.PublishRecipe) error {
	platform, err := publisher.ParsePlatform(recipe.Platform)
	if err != nil {
		return err
	}
	if recipe.DelayHours < 0 {
		return errors.Validation("delay_hours must be >= 0, got %v", recipe.DelayHours)
	}
	if recipe.ProjectKey == "" {
		return errors.Validation("project_key is required")
	}
	recipe.Platform = platform.String()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if recipe.IsMain && recipe.IsActive {
			if err := tx.Model(&models.PublishRecipe{}).
				Where("project_key = ? AND platform <> ? AND is_main = ?", recipe.ProjectKey, recipe.Platform, true).
				Update("is_main", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_key"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_active", "is_main", "delay_hours", "updated_at"}),
		}).Create(recipe).Error; err != nil {
			return err
		}
		// On conflict the stored row keeps its id, so reload into a fresh value.
		var stored models.PublishRecipe
		if err := tx.Where("project_key = ? AND platform = ?", recipe.ProjectKey, recipe.Platform).First(&stored).Error; err != nil {
			return err
		}
		*recipe = stored
		return nil
	})
	if err != nil {
		return errors.Storage(err, "save recipe")
	}

	s.logger.Info("Recipe saved",
		zap.String("project", recipe.ProjectKey),
		zap.String("platform", recipe.Platform),
		zap.Bool("main", recipe.IsMain),
		zap.Bool("active", recipe.IsActive),
		zap.Float64("delay_hours", recipe.DelayHours))
	return nil
}
