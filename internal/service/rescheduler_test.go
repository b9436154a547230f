package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/pkg/errors"
)

func scheduledNews(t *testing.T) (*Rescheduler, map[string]models.PublishJob) {
	t.Helper()
	db := newTestDB(t)
	seedRecipes(t, db, standardRecipes()...)
	seedNews(t, db, "n1", true)

	jobs, err := NewPlanner(db, testProject, zap.NewNop()).Schedule(context.Background(), models.NewsRef("n1"), &base)
	require.NoError(t, err)

	byPlatform := map[string]models.PublishJob{}
	for _, j := range jobs {
		byPlatform[j.Platform] = j
	}
	return NewRescheduler(db, testProject, zap.NewNop()), byPlatform
}

func TestMoveChainRecomputesSiblings(t *testing.T) {
	r, jobs := scheduledNews(t)
	newTime := base.Add(10 * time.Hour)

	moved, err := r.Move(context.Background(), jobs["site"].ID, newTime, MoveChain)
	require.NoError(t, err)
	assert.Len(t, moved, 3)

	store := NewJobStore(r.db)
	for platform, delay := range map[string]time.Duration{"site": 0, "tg": time.Hour, "vk": 3 * time.Hour} {
		got, err := store.Get(context.Background(), jobs[platform].ID)
		require.NoError(t, err)
		requireSameTime(t, newTime.Add(delay), got.PublishAt)
	}
}

func TestMoveChainSkipsPublishedSibling(t *testing.T) {
	r, jobs := scheduledNews(t)
	require.NoError(t, r.db.Model(&models.PublishJob{}).Where("id = ?", jobs["tg"].ID).
		Update("status", models.JobPublished).Error)

	_, err := r.Move(context.Background(), jobs["site"].ID, base.Add(5*time.Hour), MoveChain)
	require.NoError(t, err)

	got := loadJob(t, r.db, jobs["tg"].ID)
	requireSameTime(t, base.Add(time.Hour), got.PublishAt)
	got = loadJob(t, r.db, jobs["vk"].ID)
	requireSameTime(t, base.Add(8*time.Hour), got.PublishAt)
}

func TestMoveSingleLeavesSiblings(t *testing.T) {
	r, jobs := scheduledNews(t)

	moved, err := r.Move(context.Background(), jobs["site"].ID, base.Add(10*time.Hour), MoveSingle)
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	requireSameTime(t, base.Add(time.Hour), loadJob(t, r.db, jobs["tg"].ID).PublishAt)
	requireSameTime(t, base.Add(3*time.Hour), loadJob(t, r.db, jobs["vk"].ID).PublishAt)
}

func TestMoveChainOnNonMainMovesOnlyThatJob(t *testing.T) {
	r, jobs := scheduledNews(t)

	moved, err := r.Move(context.Background(), jobs["tg"].ID, base.Add(2*time.Hour), MoveChain)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	requireSameTime(t, base, loadJob(t, r.db, jobs["site"].ID).PublishAt)
}

func TestMoveRejectsPublishedJob(t *testing.T) {
	r, jobs := scheduledNews(t)
	require.NoError(t, r.db.Model(&models.PublishJob{}).Where("id = ?", jobs["site"].ID).
		Update("status", models.JobPublished).Error)

	_, err := r.Move(context.Background(), jobs["site"].ID, base.Add(time.Hour), MoveChain)
	assert.True(t, errors.IsValidation(err))
	requireSameTime(t, base.Add(time.Hour), loadJob(t, r.db, jobs["tg"].ID).PublishAt)
}

func TestMoveMissingJob(t *testing.T) {
	r, _ := scheduledNews(t)
	_, err := r.Move(context.Background(), "missing", base, MoveSingle)
	assert.True(t, errors.IsNotFound(err))
}

func TestParseMoveMode(t *testing.T) {
	m, err := ParseMoveMode("")
	require.NoError(t, err)
	assert.Equal(t, MoveSingle, m)

	m, err = ParseMoveMode("chain")
	require.NoError(t, err)
	assert.Equal(t, MoveChain, m)

	_, err = ParseMoveMode("cascade")
	assert.True(t, errors.IsValidation(err))
}
