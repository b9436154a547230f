package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

const safeModeKey = "safe_publish_mode"

// SettingsSource yields the credential snapshot for one dispatcher invocation.
type SettingsSource interface {
	Settings(ctx context.Context) (publisher.Settings, error)
}

// StaticSettings serves the snapshot loaded from the config file.
type StaticSettings publisher.Settings

func (s StaticSettings) Settings(context.Context) (publisher.Settings, error) {
	return publisher.Settings(s), nil
}

// ProjectSettings overlays the active project_settings rows on top of a
// base snapshot. Unknown keys are ignored.
type ProjectSettings struct {
	db         *gorm.DB
	projectKey string
	base       publisher.Settings
	logger     *zap.Logger
}

func NewProjectSettings(db *gorm.DB, projectKey string, base publisher.Settings, logger *zap.Logger) *ProjectSettings {
	return &ProjectSettings{db: db, projectKey: projectKey, base: base, logger: logger}
}

func (s *ProjectSettings) Settings(ctx context.Context) (publisher.Settings, error) {
	var rows []models.ProjectSetting
	if err := s.db.WithContext(ctx).
		Where("project_key = ? AND is_active = ?", s.projectKey, true).
		Find(&rows).Error; err != nil {
		return publisher.Settings{}, errors.Storage(err, "load project settings")
	}

	out := s.base
	fields := out.Keys()
	for _, row := range rows {
		value := strings.TrimSpace(row.Value)
		if row.Key == safeModeKey {
			on, err := strconv.ParseBool(value)
			if err != nil {
				s.logger.Warn("Ignoring invalid safe mode setting", zap.String("value", value))
				continue
			}
			out.SafeMode = on
			continue
		}
		if field, ok := fields[row.Key]; ok && value != "" {
			*field = value
		}
	}
	return out, nil
}
