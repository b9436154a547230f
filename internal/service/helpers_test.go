package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/internal/testutil"
)

const testProject = "news"

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakePublisher answers with fn, or a fixed success.
type fakePublisher struct {
	platform publisher.Platform
	fn       func(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult
}

func (f *fakePublisher) Platform() publisher.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	if f.fn != nil {
		return f.fn(ctx, pc)
	}
	return &publisher.PublishResult{
		Success:      true,
		ExternalID:   "ext-" + string(f.platform),
		PublishedURL: "https://" + string(f.platform) + ".example/post",
	}
}

// fakeFactory hands out fake publishers and remembers every context it saw.
type fakeFactory struct {
	mu         sync.Mutex
	publishers map[publisher.Platform]*fakePublisher
	contexts   []publisher.PublishContext
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{publishers: map[publisher.Platform]*fakePublisher{}}
}

func (f *fakeFactory) set(p publisher.Platform, fn func(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult) {
	f.publishers[p] = &fakePublisher{platform: p, fn: fn}
}

func (f *fakeFactory) NewPublisher(p publisher.Platform, _ publisher.Settings) (publisher.Publisher, bool) {
	pub, ok := f.publishers[p]
	if !ok {
		return nil, false
	}
	return &recordingPublisher{Publisher: pub, factory: f}, true
}

type recordingPublisher struct {
	publisher.Publisher
	factory *fakeFactory
}

func (r *recordingPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	r.factory.mu.Lock()
	r.factory.contexts = append(r.factory.contexts, pc)
	r.factory.mu.Unlock()
	return r.Publisher.Publish(ctx, pc)
}

func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewTestDB(t)
}

func seedRecipes(t *testing.T, db *gorm.DB, recipes ...models.PublishRecipe) {
	t.Helper()
	for i := range recipes {
		if recipes[i].ProjectKey == "" {
			recipes[i].ProjectKey = testProject
		}
		require.NoError(t, db.Create(&recipes[i]).Error)
	}
}

// standardRecipes is site main, tg +1h, vk +3h.
func standardRecipes() []models.PublishRecipe {
	return []models.PublishRecipe{
		{Platform: "site", IsActive: true, IsMain: true},
		{Platform: "tg", IsActive: true, DelayHours: 1},
		{Platform: "vk", IsActive: true, DelayHours: 3},
	}
}

func seedNews(t *testing.T, db *gorm.DB, id string, approved bool) *models.NewsItem {
	t.Helper()
	item := &models.NewsItem{
		ID: id,
		ContentFields: models.ContentFields{
			Title:           "Title " + id,
			DraftAnnounce:   testutil.Ptr("<p>Announce</p>"),
			DraftAnnounceTG: testutil.Ptr("<b>TG announce</b>"),
			DraftLongread:   testutil.Ptr("<p>Long read</p>"),
			Status:          "approved",
		},
	}
	if approved {
		item.Approve1Decision = testutil.Ptr(models.DecisionApproved)
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func seedJob(t *testing.T, db *gorm.DB, ref models.ContentRef, platform string, status models.JobStatus, at time.Time) *models.PublishJob {
	t.Helper()
	job := &models.PublishJob{Platform: platform, Status: status, PublishAt: at.UTC()}
	job.SetRef(ref)
	require.NoError(t, db.Create(job).Error)
	return job
}

func loadJob(t *testing.T, db *gorm.DB, id string) models.PublishJob {
	t.Helper()
	var job models.PublishJob
	require.NoError(t, db.Where("id = ?", id).First(&job).Error)
	return job
}

func requireSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func newTestProcessor(db *gorm.DB, factory PublisherFactory, opts ...ProcessorOption) *Processor {
	return NewProcessor(NewJobStore(db), NewContentStore(db), factory, 2*time.Second, zap.NewNop(), opts...)
}

var configured = publisher.Settings{TelegramBotToken: "bot", TelegramChannelID: "@chan"}
