package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

// recordTimeout bounds the row writes that follow a claim.
const recordTimeout = 30 * time.Second

// Outcome statuses reported per job.
const (
	OutcomePublished = "published"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
)

// JobOutcome is what one processor run reports.
type JobOutcome struct {
	JobID        string `json:"job_id"`
	Platform     string `json:"platform,omitempty"`
	Status       string `json:"status"`
	ExternalID   string `json:"external_id,omitempty"`
	PublishedURL string `json:"published_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Processor runs a single publish job end to end.
type Processor struct {
	jobs       *JobStore
	content    *ContentStore
	factory    PublisherFactory
	files      FileURLResolver
	monitoring *MonitoringService
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

type ProcessorOption func(*Processor)

// WithFileResolver sets how Telegram file handles are turned into URLs.
func WithFileResolver(r FileURLResolver) ProcessorOption {
	return func(p *Processor) { p.files = r }
}

// WithMonitoring records failures and publish counters.
func WithMonitoring(m *MonitoringService) ProcessorOption {
	return func(p *Processor) { p.monitoring = m }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(jobs *JobStore, content *ContentStore, factory PublisherFactory, timeout time.Duration, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	if timeout <= 0 {
		timeout = publisher.DefaultTimeout
	}
	p := &Processor{
		jobs:    jobs,
		content: content,
		factory: factory,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process claims the job and publishes it. Scheduled runs only pick up queued
// jobs; forced runs also retry failed ones. Every failure after the claim
// ends up on the job row, never as a returned error.
func (p *Processor) Process(ctx context.Context, jobID string, settings publisher.Settings, force bool) JobOutcome {
	allowed := []models.JobStatus{models.JobQueued}
	if force {
		allowed = append(allowed, models.JobError)
	}

	claimed, err := p.jobs.Claim(ctx, jobID, allowed...)
	if err != nil {
		p.logger.Error("Failed to claim job", zap.String("job_id", jobID), zap.Error(err))
		return JobOutcome{JobID: jobID, Status: OutcomeError, Error: errors.UserMessage(err)}
	}
	if !claimed {
		p.logger.Debug("Job already claimed elsewhere", zap.String("job_id", jobID))
		return JobOutcome{JobID: jobID, Status: OutcomeSkipped}
	}

	// Once claimed, the row must leave processing even when the caller goes away.
	rec, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	job, err := p.jobs.Get(rec, jobID)
	if err != nil {
		return p.fail(rec, &models.PublishJob{ID: jobID}, err)
	}
	return p.run(ctx, rec, job, settings)
}

// run publishes on ctx and records the outcome on rec.
func (p *Processor) run(ctx, rec context.Context, job *models.PublishJob, settings publisher.Settings) JobOutcome {
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("platform", job.Platform))

	platform, err := publisher.ParsePlatform(job.Platform)
	if err != nil {
		return p.fail(rec, job, err)
	}

	item, err := p.content.Get(rec, job.Ref())
	if err != nil {
		return p.fail(rec, job, err)
	}

	pc := publisher.PublishContext{
		ContentID:   item.Ref.ID,
		Title:       util.FirstNonEmpty(util.Deref(item.DraftTitle), item.Title),
		ContentHTML: SelectContent(item, platform),
		ImageURL:    ResolveImageURL(ctx, item, platform, settings, p.files, log),
		SourceURL:   util.Deref(item.PublishedURL),
		Settings:    settings,
	}

	var result *publisher.PublishResult
	if settings.SafeMode {
		log.Info("Safe publish mode, simulating success")
		result = &publisher.PublishResult{
			Success:     true,
			ExternalID:  fmt.Sprintf("simulated_%d", p.now().UnixMilli()),
			RawResponse: map[string]any{"simulated": true},
		}
	} else {
		pub, ok := p.factory.NewPublisher(platform, settings)
		if !ok {
			return p.fail(rec, job, errors.Configuration("%s: platform not configured", platform))
		}
		log.Info("Publishing", zap.String("content_id", item.Ref.String()))
		result = p.publish(ctx, pub, pc)
	}

	if !result.Success {
		err := result.Error
		if err == nil {
			err = errors.Newf("%s: publish failed", platform)
		}
		return p.fail(rec, job, err)
	}
	return p.succeed(rec, job, item, platform, pc, result, settings.SafeMode)
}

// publish bounds the call by the processor timeout and turns a panic into a
// failed result.
func (p *Processor) publish(ctx context.Context, pub publisher.Publisher, pc publisher.PublishContext) *publisher.PublishResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan *publisher.PublishResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- publisher.Failed(errors.Newf("%s publisher panicked: %v", pub.Platform(), r))
			}
		}()
		done <- pub.Publish(ctx, pc)
	}()

	select {
	case res := <-done:
		if res == nil {
			return publisher.Failed(errors.Newf("%s publisher returned no result", pub.Platform()))
		}
		return res
	case <-ctx.Done():
		return publisher.Failed(errors.Mark(
			errors.Wrapf(ctx.Err(), "%s: publish exceeded %s", pub.Platform(), p.timeout),
			errors.ErrTimeout))
	}
}

func (p *Processor) succeed(ctx context.Context, job *models.PublishJob, item *models.ContentItem, platform publisher.Platform, pc publisher.PublishContext, res *publisher.PublishResult, simulated bool) JobOutcome {
	now := p.now().UTC()
	out := JobOutcome{
		JobID:        job.ID,
		Platform:     platform.String(),
		Status:       OutcomePublished,
		ExternalID:   res.ExternalID,
		PublishedURL: res.PublishedURL,
	}

	err := p.jobs.MarkPublished(ctx, job.ID, JobSuccess{
		ExternalID:    res.ExternalID,
		PublishedURL:  res.PublishedURL,
		SocialContent: pc.ContentHTML,
		PublishedAt:   now,
	})
	if err != nil {
		// The remote post exists; the row stays in processing for an operator.
		p.logger.Error("Published but failed to record outcome",
			zap.String("job_id", job.ID),
			zap.String("external_id", res.ExternalID),
			zap.Error(err))
		out.Status = OutcomeError
		out.Error = errors.UserMessage(err)
		return out
	}

	if platform.IsSiteClass() && !simulated {
		image := StableImageFromResponse(res.RawResponse)
		if err := p.content.MarkSitePublished(ctx, item.Ref, res.PublishedURL, image, now); err != nil {
			p.logger.Error("Failed to write site publication back to content",
				zap.String("job_id", job.ID),
				zap.String("content_id", item.Ref.String()),
				zap.Error(err))
		}
	}

	p.logger.Info("Job published",
		zap.String("job_id", job.ID),
		zap.String("platform", platform.String()),
		zap.String("external_id", res.ExternalID),
		zap.String("url", res.PublishedURL))
	p.metric("publish_success", platform.String())
	return out
}

func (p *Processor) fail(ctx context.Context, job *models.PublishJob, cause error) JobOutcome {
	msg := errors.UserMessage(cause)
	out := JobOutcome{JobID: job.ID, Platform: job.Platform, Status: OutcomeError, Error: msg}

	p.logger.Warn("Job failed",
		zap.String("job_id", job.ID),
		zap.String("platform", job.Platform),
		zap.Error(cause))

	if err := p.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		p.logger.Error("Failed to record job failure", zap.String("job_id", job.ID), zap.Error(err))
	}

	p.metric("publish_failure", job.Platform)
	if p.monitoring != nil {
		opts := []ErrorLogOption{WithJob(job.ID), WithPlatform(job.Platform)}
		if ref := job.Ref(); ref.ID != "" {
			opts = append(opts, WithContent(ref.String()))
		}
		if err := p.monitoring.RecordError("ERROR", "processor", fmt.Sprintf("Failed to publish to %s", job.Platform), msg, opts...); err != nil {
			p.logger.Warn("Failed to record error log", zap.Error(err))
		}
	}
	return out
}

func (p *Processor) metric(name, platform string) {
	if p.monitoring == nil {
		return
	}
	if err := p.monitoring.RecordMetric(name, "counter", 1, map[string]interface{}{"platform": platform}); err != nil {
		p.logger.Warn("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

// SelectContent picks the text a platform publishes. The site prefers the
// long read; social platforms prefer their own announce.
func SelectContent(item *models.ContentItem, platform publisher.Platform) string {
	announce := util.Deref(item.DraftAnnounce)
	longread := util.Deref(item.DraftLongread)
	rss := util.Deref(item.RSSSummary)

	if platform.IsSiteClass() {
		return util.FirstNonEmpty(util.Deref(item.DraftLongreadSite), longread,
			util.Deref(item.DraftAnnounceSite), announce, rss)
	}
	return util.FirstNonEmpty(platformAnnounce(item, platform), announce, longread, rss)
}

func platformAnnounce(item *models.ContentItem, platform publisher.Platform) string {
	switch platform {
	case publisher.PlatformTG:
		return util.Deref(item.DraftAnnounceTG)
	case publisher.PlatformVK:
		return util.Deref(item.DraftAnnounceVK)
	case publisher.PlatformOK:
		return util.Deref(item.DraftAnnounceOK)
	case publisher.PlatformFB:
		return util.Deref(item.DraftAnnounceFB)
	case publisher.PlatformThreads:
		return util.Deref(item.DraftAnnounceThreads)
	case publisher.PlatformX:
		return util.Deref(item.DraftAnnounceX)
	case publisher.PlatformBsky:
		return util.Deref(item.DraftAnnounceBsky)
	case publisher.PlatformSite:
		return util.Deref(item.DraftAnnounceSite)
	}
	return ""
}
