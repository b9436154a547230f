package service

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// RecordError 记录错误日志
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	for _, option := range options {
		option(errorLog)
	}

	return m.db.Create(errorLog).Error
}

// ErrorLogOption 错误日志选项
type ErrorLogOption func(*models.ErrorLog)

// WithPlatform 设置平台名称
func WithPlatform(platform string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Platform = platform
	}
}

// WithContent 设置内容引用
func WithContent(ref string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.ContentRef = ref
	}
}

// WithJob 设置任务ID
func WithJob(jobID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = &jobID
	}
}

// WithContext 设置上下文信息
func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if contextBytes, err := json.Marshal(context); err == nil {
			e.Context = datatypes.JSON(contextBytes)
		}
	}
}

// RecordMetric 记录指标数据
func (m *MonitoringService) RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error {
	metric := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Timestamp:  m.now().UTC(),
	}
	if tags != nil {
		if tagsBytes, err := json.Marshal(tags); err == nil {
			metric.Tags = datatypes.JSON(tagsBytes)
		}
	}

	return m.db.Create(metric).Error
}

// UpdatePlatformStats 更新当日平台统计数据
func (m *MonitoringService) UpdatePlatformStats() error {
	now := m.now().UTC()
	today := now.Truncate(24 * time.Hour)

	for _, platform := range publisher.Platforms {
		name := platform.String()
		jobs := func() *gorm.DB {
			return m.db.Model(&models.PublishJob{}).Where("platform = ? AND publish_at >= ? AND publish_at < ?", name, today, today.Add(24*time.Hour))
		}

		var totalJobs, publishedJobs, failedJobs, queuedJobs int64
		if err := jobs().Count(&totalJobs).Error; err != nil {
			return errors.Storage(err, "count platform jobs")
		}
		jobs().Where("status = ?", models.JobPublished).Count(&publishedJobs)
		jobs().Where("status = ?", models.JobError).Count(&failedJobs)
		jobs().Where("status = ?", models.JobQueued).Count(&queuedJobs)

		// 计划时间到实际发布的平均延迟
		var published []models.PublishJob
		jobs().Where("status = ? AND published_at_actual IS NOT NULL", models.JobPublished).
			Select("publish_at", "published_at_actual").Find(&published)
		var avgDelay float64
		for _, j := range published {
			avgDelay += j.PublishedAtActual.Sub(j.PublishAt).Seconds()
		}
		if len(published) > 0 {
			avgDelay /= float64(len(published))
		}

		var lastSuccess, lastFailure models.PublishJob
		lastSuccessErr := m.db.Where("platform = ? AND status = ?", name, models.JobPublished).Order("published_at_actual desc").First(&lastSuccess).Error
		lastFailureErr := m.db.Where("platform = ? AND status = ?", name, models.JobError).Order("updated_at desc").First(&lastFailure).Error

		var errorCount int64
		m.db.Model(&models.ErrorLog{}).Where("platform = ? AND created_at >= ?", name, today).Count(&errorCount)

		stats := models.PlatformStats{
			Date:          today,
			Platform:      name,
			TotalJobs:     int(totalJobs),
			PublishedJobs: int(publishedJobs),
			FailedJobs:    int(failedJobs),
			QueuedJobs:    int(queuedJobs),
			AvgDelay:      avgDelay,
			ErrorCount:    int(errorCount),
		}
		if lastSuccessErr == nil {
			stats.LastSuccessAt = lastSuccess.PublishedAtActual
		}
		if lastFailureErr == nil {
			stats.LastFailureAt = &lastFailure.UpdatedAt
		}

		var existing models.PlatformStats
		result := m.db.Where("date = ? AND platform = ?", today, name).First(&existing)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := m.db.Create(&stats).Error; err != nil {
				return errors.Storage(err, "create platform stats")
			}
			continue
		}
		if result.Error != nil {
			return errors.Storage(result.Error, "load platform stats")
		}

		updates := map[string]interface{}{
			"total_jobs":      stats.TotalJobs,
			"published_jobs":  stats.PublishedJobs,
			"failed_jobs":     stats.FailedJobs,
			"queued_jobs":     stats.QueuedJobs,
			"avg_delay":       stats.AvgDelay,
			"error_count":     stats.ErrorCount,
			"last_success_at": stats.LastSuccessAt,
			"last_failure_at": stats.LastFailureAt,
		}
		if err := m.db.Model(&existing).Updates(updates).Error; err != nil {
			return errors.Storage(err, "update platform stats")
		}
	}

	return nil
}

// GetRecentErrors 获取最近的错误日志
func (m *MonitoringService) GetRecentErrors(limit int) ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	err := m.db.Order("created_at desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// ResolveError 标记错误已解决
func (m *MonitoringService) ResolveError(id uint) error {
	now := m.now().UTC()
	res := m.db.Model(&models.ErrorLog{}).Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if res.Error != nil {
		return errors.Storage(res.Error, "resolve error log")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("error log %d not found", id)
	}
	return nil
}

// GetPlatformStats 获取平台统计数据
func (m *MonitoringService) GetPlatformStats(days int) ([]models.PlatformStats, error) {
	var stats []models.PlatformStats
	startDate := m.now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	err := m.db.Where("date >= ?", startDate).
		Order("date desc, platform").
		Find(&stats).Error
	return stats, err
}

// CleanupOldData 清理旧数据
func (m *MonitoringService) CleanupOldData(daysToKeep int) error {
	cutoffDate := m.now().UTC().AddDate(0, 0, -daysToKeep)

	if err := m.db.Where("timestamp < ?", cutoffDate).Delete(&models.MetricsSample{}).Error; err != nil {
		return errors.Wrap(err, "failed to cleanup metrics samples")
	}

	if err := m.db.Where("date < ?", cutoffDate).Delete(&models.PlatformStats{}).Error; err != nil {
		return errors.Wrap(err, "failed to cleanup platform stats")
	}

	// 只清理已解决的错误
	if err := m.db.Where("created_at < ? AND resolved = ?", cutoffDate, true).Delete(&models.ErrorLog{}).Error; err != nil {
		return errors.Wrap(err, "failed to cleanup resolved errors")
	}

	return nil
}
