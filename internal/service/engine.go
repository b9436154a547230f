package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/config"
	"github.com/ifuryst/herald/internal/models"
)

// Engine wires the publishing components for one project.
type Engine struct {
	Recipes     *RecipeStore
	Jobs        *JobStore
	Content     *ContentStore
	Planner     *Planner
	Processor   *Processor
	Dispatcher  *Dispatcher
	Approval    *ApprovalGate
	Rescheduler *Rescheduler
	Monitoring  *MonitoringService
	Settings    SettingsSource

	logger *zap.Logger
}

// EngineDeps overrides collaborators, mostly for tests.
type EngineDeps struct {
	Factory   PublisherFactory
	Files     FileURLResolver
	Generator Generator
	Settings  SettingsSource
}

func NewEngine(cfg *config.Config, db *gorm.DB, logger *zap.Logger, deps EngineDeps) *Engine {
	if deps.Factory == nil {
		publishers := NewPublishers(&cfg.Publisher, logger)
		deps.Factory = publishers
		if deps.Files == nil {
			deps.Files = publishers.TelegramFiles()
		}
	}
	if deps.Generator == nil {
		deps.Generator = NewGenerator(&cfg.Generation, logger)
	}
	if deps.Settings == nil {
		deps.Settings = NewProjectSettings(db, cfg.Project.Key, cfg.Publisher.Credentials, logger)
	}

	jobs := NewJobStore(db)
	content := NewContentStore(db)
	monitoring := NewMonitoringService(db, logger)

	opts := []ProcessorOption{WithMonitoring(monitoring)}
	if deps.Files != nil {
		opts = append(opts, WithFileResolver(deps.Files))
	}
	processor := NewProcessor(jobs, content, deps.Factory, cfg.Publisher.Timeout, logger, opts...)

	return &Engine{
		Recipes:     NewRecipeStore(db, logger),
		Jobs:        jobs,
		Content:     content,
		Planner:     NewPlanner(db, cfg.Project.Key, logger),
		Processor:   processor,
		Dispatcher:  NewDispatcher(jobs, processor, cfg.Scheduler.Concurrency, logger),
		Approval:    NewApprovalGate(content, deps.Generator, monitoring, logger),
		Rescheduler: NewRescheduler(db, cfg.Project.Key, logger),
		Monitoring:  monitoring,
		Settings:    deps.Settings,
		logger:      logger,
	}
}

// RunSchedule loads a fresh settings snapshot and dispatches due jobs.
func (e *Engine) RunSchedule(ctx context.Context) (Summary, error) {
	settings, err := e.Settings.Settings(ctx)
	if err != nil {
		return Summary{}, err
	}
	return e.Dispatcher.CheckSchedule(ctx, settings)
}

// Force processes exactly ids, including failed jobs.
func (e *Engine) Force(ctx context.Context, ids []string) (Summary, error) {
	settings, err := e.Settings.Settings(ctx)
	if err != nil {
		return Summary{}, err
	}
	return e.Dispatcher.ForceDispatch(ctx, ids, settings), nil
}

// History lists the jobs of one content item.
func (e *Engine) History(ctx context.Context, ref models.ContentRef) ([]models.PublishJob, error) {
	return e.Jobs.ListByContent(ctx, ref)
}
