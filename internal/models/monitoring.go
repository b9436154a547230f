package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlatformStats 平台级别统计信息 (按日)
type PlatformStats struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Date          time.Time  `gorm:"not null;uniqueIndex:idx_platform_stats_day" json:"date"`
	Platform      string     `gorm:"size:50;not null;uniqueIndex:idx_platform_stats_day" json:"platform"`
	TotalJobs     int        `gorm:"default:0" json:"total_jobs"`
	PublishedJobs int        `gorm:"default:0" json:"published_jobs"`
	FailedJobs    int        `gorm:"default:0" json:"failed_jobs"`
	QueuedJobs    int        `gorm:"default:0" json:"queued_jobs"`
	AvgDelay      float64    `gorm:"default:0" json:"avg_delay"` // 计划时间到实际发布的平均延迟(秒)
	LastSuccessAt *time.Time `json:"last_success_at"`
	LastFailureAt *time.Time `json:"last_failure_at"`
	ErrorCount    int        `gorm:"default:0" json:"error_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrorLog 错误日志表
type ErrorLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Level      string         `gorm:"size:20;not null;index" json:"level"`   // ERROR, WARN
	Source     string         `gorm:"size:100;not null;index" json:"source"` // processor, approval, dispatcher
	Platform   string         `gorm:"size:50;index" json:"platform"`
	ContentRef string         `gorm:"size:80;index" json:"content_ref"`
	JobID      *string        `gorm:"size:36;index" json:"job_id"`
	Title      string         `gorm:"size:500;not null" json:"title"`
	Message    string         `gorm:"type:text;not null" json:"message"`
	Context    datatypes.JSON `json:"context"`
	Resolved   bool           `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time     `json:"resolved_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricsSample 指标采样数据
type MetricsSample struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	MetricName string         `gorm:"size:100;not null;index" json:"metric_name"`
	MetricType string         `gorm:"size:50;not null" json:"metric_type"` // gauge, counter
	Value      float64        `gorm:"not null" json:"value"`
	Tags       datatypes.JSON `json:"tags"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
