package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/config"
	"github.com/ifuryst/herald/internal/service"
	"github.com/ifuryst/herald/pkg/errors"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Engine       *service.Engine
	Scheduler    *service.Scheduler
	StatsUpdater *service.StatsUpdater
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}
	return New(cfg, db, logger, service.EngineDeps{}), nil
}

// New builds a server on an already migrated database.
func New(cfg *config.Config, db *gorm.DB, logger *zap.Logger, deps service.EngineDeps) *Server {
	gin.SetMode(cfg.Server.Mode)

	engine := service.NewEngine(cfg, db, logger, deps)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, engine)
	statsUpdater := service.NewStatsUpdater(engine.Monitoring, logger, cfg.Monitoring.StatsInterval, cfg.Monitoring.RetentionDays)

	srv := &Server{
		Config:       cfg,
		DB:           db,
		Router:       gin.New(),
		Logger:       logger,
		Engine:       engine,
		Scheduler:    scheduler,
		StatsUpdater: statsUpdater,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	s.Router.Use(gin.Recovery())

	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	api := s.Router.Group("/api/v1")
	{
		api.POST("/cron/publish", s.requireCronSecret, s.handleCronPublish)

		news := api.Group("/news/:id")
		{
			news.POST("/approve", s.handleApprove)
			news.POST("/reject", s.handleReject)
		}

		content := api.Group("/content/:kind/:id")
		{
			content.POST("/schedule", s.handleSchedule)
			content.GET("/jobs", s.handleListJobs)
		}

		jobs := api.Group("/jobs/:id")
		{
			jobs.PATCH("", s.handleMoveJob)
			jobs.DELETE("", s.handleCancelJob)
		}

		recipes := api.Group("/recipes")
		{
			recipes.GET("", s.handleListRecipes)
			recipes.PUT("/:platform", s.handleSaveRecipe)
		}

		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/errors", s.handleRecentErrors)
			monitoring.POST("/errors/:id/resolve", s.handleResolveError)
			monitoring.GET("/stats", s.handlePlatformStats)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.Scheduler.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start scheduler")
	}
	s.StatsUpdater.Start(ctx)

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Scheduler.Stop()
	s.StatsUpdater.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
