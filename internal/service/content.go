package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

// ContentStore reads news and review items and performs the few writes the
// publishing engine owns on them.
type ContentStore struct {
	db *gorm.DB
}

func NewContentStore(db *gorm.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) table(ref models.ContentRef) interface{} {
	if ref.Kind == models.ContentReview {
		return &models.ReviewItem{}
	}
	return &models.NewsItem{}
}

// Get loads the projection of ref.
func (s *ContentStore) Get(ctx context.Context, ref models.ContentRef) (*models.ContentItem, error) {
	var (
		item models.ContentItem
		err  error
	)
	switch ref.Kind {
	case models.ContentNews:
		var news models.NewsItem
		err = s.db.WithContext(ctx).Where("id = ?", ref.ID).First(&news).Error
		item = news.Item()
	case models.ContentReview:
		var review models.ReviewItem
		err = s.db.WithContext(ctx).Where("id = ?", ref.ID).First(&review).Error
		item = review.Item()
	default:
		return nil, errors.Validation("unknown content kind %q", ref.Kind)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("%s not found", ref)
	}
	if err != nil {
		return nil, errors.Storage(err, "load content")
	}
	return &item, nil
}

// MarkSitePublished records the canonical site URL on the content item. A
// non-empty stableImage replaces the stored draft image.
func (s *ContentStore) MarkSitePublished(ctx context.Context, ref models.ContentRef, publishedURL, stableImage string, at time.Time) error {
	updates := map[string]interface{}{
		"published_url": util.Ptr(publishedURL),
		"published_at":  at.UTC(),
		"status":        models.ContentStatusPublished,
		"updated_at":    time.Now().UTC(),
	}
	if stableImage != "" {
		updates["draft_image_url"] = stableImage
	}
	err := s.db.WithContext(ctx).Model(s.table(ref)).Where("id = ?", ref.ID).Updates(updates).Error
	if err != nil {
		return errors.Storage(err, "write back site publication")
	}
	return nil
}

// Decide sets the first approval decision if none is recorded yet. It reports
// false when the row exists but was already decided.
func (s *ContentStore) Decide(ctx context.Context, newsID, decision, decidedBy string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.NewsItem{}).
		Where("id = ? AND approve1_decision IS NULL", newsID).
		Updates(map[string]interface{}{
			"approve1_decision":   decision,
			"approve1_decided_at": at.UTC(),
			"approve1_decided_by": util.Ptr(decidedBy),
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, errors.Storage(res.Error, "record approval decision")
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.NewsItem{}).Where("id = ?", newsID).Count(&count).Error; err != nil {
		return false, errors.Storage(err, "check news item")
	}
	if count == 0 {
		return false, errors.NotFound("news item %s not found", newsID)
	}
	return false, nil
}

// RevertDecision clears the approval and marks the item failed with reason.
func (s *ContentStore) RevertDecision(ctx context.Context, newsID, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.NewsItem{}).
		Where("id = ?", newsID).
		Updates(map[string]interface{}{
			"approve1_decision":   nil,
			"approve1_decided_at": nil,
			"approve1_decided_by": nil,
			"status":              models.ContentStatusError,
			"last_error":          util.TruncateError(reason),
			"updated_at":          time.Now().UTC(),
		}).Error
	if err != nil {
		return errors.Storage(err, "revert approval decision")
	}
	return nil
}
