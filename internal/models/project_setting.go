package models

import "time"

// ProjectSetting is one credential key/value of a project.
type ProjectSetting struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectKey string    `gorm:"size:100;not null;uniqueIndex:idx_setting_project_key" json:"project_key"`
	Key        string    `gorm:"size:100;not null;uniqueIndex:idx_setting_project_key" json:"key"`
	Value      string    `gorm:"type:text" json:"-"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
