package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/qa-forum/backend/internal/auth"
	"github.com/emilythestrangee/qa-forum/backend/internal/cache"
	"github.com/emilythestrangee/qa-forum/backend/internal/config"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/handlers"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/metrics"
	"github.com/emilythestrangee/qa-forum/backend/internal/middleware"
	"github.com/emilythestrangee/qa-forum/backend/internal/service"
	"github.com/emilythestrangee/qa-forum/backend/internal/voting"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	auth    *service.AuthService
	limiter *middleware.RateLimiter
	node    *snowflake.Node
}

// NewServer wires services and handlers. rds may be nil, in which case stats
// are computed on every request.
func NewServer(cfg *config.Config, db database.Service, rds *redis.Client) (*Server, error) {
	node, err := snowflake.NewNode(cfg.Server.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.Server.NodeID, err)
	}

	var statsCache service.StatsCache
	if rds != nil {
		statsCache = cache.NewStatsStorage(rds, cfg.Stats.CacheTTL)
	}

	registry := voting.NewRegistry()
	ledger := voting.NewLedger(db, registry)
	stats := service.NewStatsService(db, statsCache)
	authService := service.NewAuthService(db, auth.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Expire))

	handler := handlers.NewHandler(handlers.Deps{
		Auth:      authService,
		Questions: service.NewQuestionService(db, ledger, stats),
		Answers:   service.NewAnswerService(db, ledger, registry, voting.NewAcceptance(db), stats),
		Tags:      service.NewTagService(db),
		Stats:     stats,
		Ledger:    ledger,
	})

	return &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
		auth:    authService,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.VotesPerSecond, cfg.RateLimit.Burst),
		node:    node,
	}, nil
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(s.node),
		middleware.Recovery(),
		middleware.AccessLog(),
		metrics.Middleware(),
	)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		health := s.db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": health["status"], "database": health})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	{
		// Public routes
		api.POST("/auth/register", s.handler.Auth.Register)
		api.POST("/auth/login", s.handler.Auth.Login)

		api.GET("/questions", s.handler.Question.GetQuestions)
		api.GET("/questions/:id", s.handler.Question.GetQuestion)
		api.GET("/questions/:id/answers", s.handler.Question.GetAnswers)

		api.GET("/tags", s.handler.Tag.GetTags)
		api.GET("/stats", s.handler.Stats.GetStats)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.auth))
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			protected.POST("/questions", s.handler.Question.CreateQuestion)
			protected.PUT("/questions/:id", s.handler.Question.UpdateQuestion)
			protected.DELETE("/questions/:id", s.handler.Question.DeleteQuestion)

			protected.POST("/answers", s.handler.Answer.CreateAnswer)
			protected.PUT("/answers/:id", s.handler.Answer.UpdateAnswer)
			protected.DELETE("/answers/:id", s.handler.Answer.DeleteAnswer)
			protected.PATCH("/answers/:id/accept", s.handler.Answer.AcceptAnswer)

			votes := protected.Group("/votes")
			votes.Use(s.limiter.Middleware())
			votes.POST("", s.handler.Vote.CastVote)
			votes.DELETE("/:id", s.handler.Vote.RevokeVote)
		}
	}

	return r
}

// HTTPServer builds the listener configuration around the router.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Server.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := s.HTTPServer()
	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.L.Info("server starting", zap.String("addr", srv.Addr), zap.Int("pid", os.Getpid()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		logger.L.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.L.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	logger.L.Info("server exiting")
	return nil
}
