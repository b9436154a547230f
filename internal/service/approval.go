package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/pkg/errors"
)

// ApprovalGate records the first operator decision on a news item with a
// compare-and-swap on the nullable decision column.
type ApprovalGate struct {
	content    *ContentStore
	generator  Generator
	monitoring *MonitoringService
	logger     *zap.Logger
	now        func() time.Time
}

func NewApprovalGate(content *ContentStore, generator Generator, monitoring *MonitoringService, logger *zap.Logger) *ApprovalGate {
	return &ApprovalGate{
		content:    content,
		generator:  generator,
		monitoring: monitoring,
		logger:     logger,
		now:        time.Now,
	}
}

// Approve marks the item approved and runs generation synchronously. If
// generation fails the decision is reverted, so approved always implies
// generated drafts.
func (g *ApprovalGate) Approve(ctx context.Context, newsID, decidedBy string) error {
	if err := g.decide(ctx, newsID, models.DecisionApproved, decidedBy); err != nil {
		return err
	}

	genErr := g.generator.Generate(ctx, newsID)
	if genErr == nil {
		g.logger.Info("News approved", zap.String("content_id", newsID), zap.String("by", decidedBy))
		return nil
	}
	genErr = errors.Mark(errors.Wrapf(genErr, "generate drafts for %s", newsID), errors.ErrGeneration)

	g.logger.Warn("Generation failed, reverting approval",
		zap.String("content_id", newsID),
		zap.Error(genErr))
	g.recordError(newsID, "Generation failed after approval", genErr)

	if err := g.content.RevertDecision(ctx, newsID, genErr.Error()); err != nil {
		g.logger.Error("Failed to revert approval",
			zap.String("content_id", newsID),
			zap.Error(err))
		return errors.WithSecondaryError(err, genErr)
	}
	return genErr
}

// Reject records a rejection. Nothing runs downstream.
func (g *ApprovalGate) Reject(ctx context.Context, newsID, decidedBy string) error {
	if err := g.decide(ctx, newsID, models.DecisionRejected, decidedBy); err != nil {
		return err
	}
	g.logger.Info("News rejected", zap.String("content_id", newsID), zap.String("by", decidedBy))
	return nil
}

func (g *ApprovalGate) decide(ctx context.Context, newsID, decision, decidedBy string) error {
	ok, err := g.content.Decide(ctx, newsID, decision, decidedBy, g.now())
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Info("Decision lost to a concurrent operator",
			zap.String("content_id", newsID),
			zap.String("decision", decision))
		return errors.Mark(errors.Newf("news %s already decided", newsID), errors.ErrStaleData)
	}
	return nil
}

func (g *ApprovalGate) recordError(newsID, title string, err error) {
	if g.monitoring == nil {
		return
	}
	if rerr := g.monitoring.RecordError("ERROR", "approval", title, errors.UserMessage(err),
		WithContent(models.NewsRef(newsID).String())); rerr != nil {
		g.logger.Warn("Failed to record error log", zap.Error(rerr))
	}
}
