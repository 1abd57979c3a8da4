package server

import (
	"context"
	"strings"
	"time"

	"anoa.com/forumkarma/internal/config"
	"anoa.com/forumkarma/internal/jobs"
	"anoa.com/forumkarma/internal/middleware"

	auditService "anoa.com/forumkarma/internal/modules/audit/service"

	karmaHttp "anoa.com/forumkarma/internal/modules/karma/delivery/http"
	karmaRepo "anoa.com/forumkarma/internal/modules/karma/repository"
	karmaService "anoa.com/forumkarma/internal/modules/karma/service"

	targetRepo "anoa.com/forumkarma/internal/modules/target/repository"

	userRepo "anoa.com/forumkarma/internal/modules/user/repository"

	voteHttp "anoa.com/forumkarma/internal/modules/vote/delivery/http"
	voteRepo "anoa.com/forumkarma/internal/modules/vote/repository"
	voteService "anoa.com/forumkarma/internal/modules/vote/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	scheduler   *jobs.Scheduler
	audit       auditService.AuditService
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	users := userRepo.NewUserRepository(db)
	targets := targetRepo.NewTargetRepository(db)
	votes := voteRepo.NewVoteRepository(db)
	ledgers := karmaRepo.NewKarmaRepository(db)

	auditSvc := auditService.NewAuditService(db, redisClient)

	rateLimiter := voteService.NewRateLimiter(redisClient, cfg.VoteRateLimitWindow, cfg.VoteRateLimitMax)

	voteSvc := voteService.NewVoteService(db, votes, ledgers, targets, auditSvc, rateLimiter)
	voteHandler := voteHttp.NewVoteHandler(voteSvc)

	karmaSvc := karmaService.NewKarmaService(db, ledgers, users, auditSvc)
	karmaHandler := karmaHttp.NewKarmaHandler(karmaSvc)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(users, cfg.JWTSecret)

	api := router.Group("/api")

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/vote", voteHandler.CastVote)
		protected.GET("/vote/:targetKind/:targetID", voteHandler.GetVoteStatus)

		protected.GET("/karma/user/:id", karmaHandler.GetKarma)

		adminGroup := protected.Group("")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/karma/recalculate/:id", karmaHandler.Recalculate)
		}
	}

	return &Server{
		engine:      router,
		scheduler:   jobs.NewScheduler(karmaSvc),
		audit:       auditSvc,
		db:          db,
		redisClient: redisClient,
	}
}

// Engine exposes the router, mainly for the http.Server in cmd.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Scheduler exposes the background job runner so cmd can start and
// stop it alongside the HTTP listener.
func (s *Server) Scheduler() *jobs.Scheduler {
	return s.scheduler
}

// StartWorkers launches the background consumers (audit queue).
func (s *Server) StartWorkers(ctx context.Context) {
	go s.audit.StartWorker(ctx)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
