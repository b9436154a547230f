package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

func TestUpdatePlatformStats(t *testing.T) {
	db := newTestDB(t)
	ref := models.NewsRef("n1")

	published := seedJob(t, db, ref, "tg", models.JobPublished, base.Add(time.Hour))
	require.NoError(t, db.Model(published).Update("published_at_actual", base.Add(time.Hour+30*time.Second)).Error)
	seedJob(t, db, ref, "tg", models.JobError, base.Add(2*time.Hour))
	seedJob(t, db, ref, "vk", models.JobQueued, base.Add(3*time.Hour))
	seedJob(t, db, ref, "vk", models.JobQueued, base.Add(30*time.Hour))

	m := NewMonitoringService(db, zap.NewNop())
	m.now = func() time.Time { return base.Add(10 * time.Hour) }

	require.NoError(t, m.UpdatePlatformStats())
	require.NoError(t, m.UpdatePlatformStats())

	stats, err := m.GetPlatformStats(1)
	require.NoError(t, err)
	require.Len(t, stats, len(publisher.Platforms))

	byPlatform := map[string]models.PlatformStats{}
	for _, s := range stats {
		byPlatform[s.Platform] = s
	}
	tg := byPlatform["tg"]
	assert.Equal(t, 2, tg.TotalJobs)
	assert.Equal(t, 1, tg.PublishedJobs)
	assert.Equal(t, 1, tg.FailedJobs)
	assert.InDelta(t, 30, tg.AvgDelay, 0.001)
	assert.NotNil(t, tg.LastSuccessAt)

	vk := byPlatform["vk"]
	assert.Equal(t, 1, vk.TotalJobs)
	assert.Equal(t, 1, vk.QueuedJobs)
}

func TestRecordAndResolveError(t *testing.T) {
	db := newTestDB(t)
	m := NewMonitoringService(db, zap.NewNop())

	require.NoError(t, m.RecordError("ERROR", "processor", "Failed to publish to vk", "vk: 5 access denied",
		WithPlatform("vk"),
		WithJob("job-1"),
		WithContent("news:n1"),
		WithContext(map[string]interface{}{"attempt": 2})))

	logs, err := m.GetRecentErrors(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "vk", logs[0].Platform)
	assert.Equal(t, "job-1", *logs[0].JobID)
	assert.JSONEq(t, `{"attempt": 2}`, string(logs[0].Context))

	require.NoError(t, m.ResolveError(logs[0].ID))
	logs, err = m.GetRecentErrors(10)
	require.NoError(t, err)
	assert.True(t, logs[0].Resolved)

	assert.True(t, errors.IsNotFound(m.ResolveError(999)))
}

func TestCleanupOldDataKeepsUnresolvedErrors(t *testing.T) {
	db := newTestDB(t)
	m := NewMonitoringService(db, zap.NewNop())
	old := base.AddDate(0, 0, -60)

	require.NoError(t, db.Create(&models.ErrorLog{Level: "ERROR", Source: "processor", Title: "old resolved", Message: "x", Resolved: true, CreatedAt: old}).Error)
	require.NoError(t, db.Create(&models.ErrorLog{Level: "ERROR", Source: "processor", Title: "old open", Message: "x", CreatedAt: old}).Error)
	require.NoError(t, db.Create(&models.MetricsSample{MetricName: "publish_success", MetricType: "counter", Value: 1, Timestamp: old}).Error)

	m.now = func() time.Time { return base }
	require.NoError(t, m.CleanupOldData(30))

	var logs []models.ErrorLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "old open", logs[0].Title)

	var samples int64
	require.NoError(t, db.Model(&models.MetricsSample{}).Count(&samples).Error)
	assert.Zero(t, samples)
}
