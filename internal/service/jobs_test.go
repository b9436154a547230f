package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/testutil"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

func TestClaimIsCompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db)
	job := seedJob(t, db, models.NewsRef("n1"), "tg", models.JobQueued, base)

	ok, err := store.Claim(context.Background(), job.ID, models.JobQueued)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(context.Background(), job.ID, models.JobQueued)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	assert.Equal(t, models.JobProcessing, loadJob(t, db, job.ID).Status)
}

func TestClaimErrorJobOnlyWhenAllowed(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db)
	job := seedJob(t, db, models.NewsRef("n1"), "tg", models.JobError, base)

	ok, err := store.Claim(context.Background(), job.ID, models.JobQueued)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Claim(context.Background(), job.ID, models.JobQueued, models.JobError)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListDueOrdersByPublishAt(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db)
	ref := models.NewsRef("n1")
	late := seedJob(t, db, ref, "vk", models.JobQueued, base.Add(2*time.Hour))
	early := seedJob(t, db, ref, "tg", models.JobQueued, base.Add(time.Hour))
	seedJob(t, db, ref, "ok", models.JobQueued, base.Add(5*time.Hour))
	seedJob(t, db, ref, "fb", models.JobError, base)
	seedJob(t, db, ref, "site", models.JobPublished, base)

	due, err := store.ListDue(context.Background(), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)
}

func TestMarkFailedBookkeeping(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db)
	job := seedJob(t, db, models.NewsRef("n1"), "tg", models.JobProcessing, base)
	require.NoError(t, db.Model(job).Updates(map[string]interface{}{
		"external_id":   "keep-me",
		"published_url": "https://keep",
	}).Error)

	require.NoError(t, store.MarkFailed(context.Background(), job.ID, strings.Repeat("x", 5000)))
	require.NoError(t, store.MarkFailed(context.Background(), job.ID, "again"))

	got := loadJob(t, db, job.ID)
	assert.Equal(t, models.JobError, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "again", util.Deref(got.ErrorMessage))
	assert.Equal(t, "keep-me", util.Deref(got.ExternalID))
	assert.Equal(t, "https://keep", util.Deref(got.PublishedURL))

	require.NoError(t, store.MarkFailed(context.Background(), job.ID, strings.Repeat("y", 5000)))
	got = loadJob(t, db, job.ID)
	assert.LessOrEqual(t, len([]rune(util.Deref(got.ErrorMessage))), util.MaxErrorLength)
}

func TestCancel(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db)
	queued := seedJob(t, db, models.NewsRef("n1"), "tg", models.JobQueued, base)
	published := seedJob(t, db, models.NewsRef("n1"), "vk", models.JobPublished, base)

	require.NoError(t, store.Cancel(context.Background(), queued.ID))
	assert.Equal(t, models.JobCancelled, loadJob(t, db, queued.ID).Status)

	err := store.Cancel(context.Background(), published.ID)
	assert.True(t, errors.IsValidation(err))

	err = store.Cancel(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestJobNeedsExactlyOneContentRef(t *testing.T) {
	db := newTestDB(t)

	both := &models.PublishJob{Platform: "tg", Status: models.JobQueued, PublishAt: base,
		NewsID: testutil.Ptr("n1"), ReviewID: testutil.Ptr("r1")}
	assert.Error(t, db.Create(both).Error)

	neither := &models.PublishJob{Platform: "tg", Status: models.JobQueued, PublishAt: base}
	assert.Error(t, db.Create(neither).Error)
}

func TestRecipeSaveKeepsSingleMain(t *testing.T) {
	db := newTestDB(t)
	store := NewRecipeStore(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.PublishRecipe{ProjectKey: testProject, Platform: "site", IsActive: true, IsMain: true}))
	require.NoError(t, store.Save(ctx, &models.PublishRecipe{ProjectKey: testProject, Platform: "tilda", IsActive: true, IsMain: true}))
	require.NoError(t, store.Save(ctx, &models.PublishRecipe{ProjectKey: testProject, Platform: "tg", IsActive: true, IsMain: true}))

	recipes, err := store.Active(ctx, testProject)
	require.NoError(t, err)
	require.Len(t, recipes, 2, "tilda is the site recipe")

	mains := 0
	for _, r := range recipes {
		if r.IsMain {
			mains++
			assert.Equal(t, "tg", r.Platform)
		}
	}
	assert.Equal(t, 1, mains)
}

func TestRecipeSaveValidation(t *testing.T) {
	store := NewRecipeStore(newTestDB(t), zap.NewNop())

	err := store.Save(context.Background(), &models.PublishRecipe{ProjectKey: testProject, Platform: "tg", DelayHours: -1})
	assert.True(t, errors.IsValidation(err))

	err = store.Save(context.Background(), &models.PublishRecipe{ProjectKey: testProject, Platform: "myspace"})
	assert.True(t, errors.IsValidation(err))
}

func TestRecipeSaveUpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	store := NewRecipeStore(db, zap.NewNop())
	ctx := context.Background()

	first := &models.PublishRecipe{ProjectKey: testProject, Platform: "tg", IsActive: true, DelayHours: 1}
	require.NoError(t, store.Save(ctx, first))

	second := &models.PublishRecipe{ProjectKey: testProject, Platform: "tg", IsActive: false, DelayHours: 2}
	require.NoError(t, store.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2.0, second.DelayHours)
	assert.False(t, second.IsActive)

	recipes, err := store.List(ctx, testProject)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, 2.0, recipes[0].DelayHours)
	assert.False(t, recipes[0].IsActive)
}
