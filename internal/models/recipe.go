package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishRecipe is a per-project rule: publish to Platform, DelayHours after
// the main recipe's time. The main recipe's delay is ignored.
type PublishRecipe struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectKey string    `gorm:"size:100;not null;uniqueIndex:idx_recipe_project_platform" json:"project_key"`
	Platform   string    `gorm:"size:50;not null;uniqueIndex:idx_recipe_project_platform" json:"platform"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	IsMain     bool      `gorm:"not null;default:false" json:"is_main"`
	DelayHours float64   `gorm:"not null;default:0" json:"delay_hours"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *PublishRecipe) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Delay converts DelayHours without rounding.
func (r PublishRecipe) Delay() time.Duration {
	return time.Duration(r.DelayHours * float64(time.Hour))
}

// All lists the tables owned by the service, in migration order.
func All() []interface{} {
	return []interface{}{
		&PublishRecipe{},
		&PublishJob{},
		&NewsItem{},
		&ReviewItem{},
		&ProjectSetting{},
		&ErrorLog{},
		&MetricsSample{},
		&PlatformStats{},
	}
}
