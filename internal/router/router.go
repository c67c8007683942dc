package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/handler"
	"github.com/stemsi/exam-engine/internal/metrics"
	"github.com/stemsi/exam-engine/internal/middleware"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Registration *handler.RegistrationHandler
	Attempt      *handler.AttemptHandler
	Leaderboard  *handler.LeaderboardHandler
	Proctor      *handler.ProctorHandler
	Monitor      *handler.MonitorHandler
	WS           *handler.WSHandler
	System       *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	answerLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.NoStore(),
	)
	{
		studentAPI.POST("/exams/:exam_id/registration", handlers.Registration.Register)
		studentAPI.GET("/exams/:exam_id/registration", handlers.Registration.GetRegistration)
		studentAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)
		studentAPI.GET("/exams/:exam_id/leaderboard", handlers.Leaderboard.Top)
		studentAPI.GET("/exams/:exam_id/leaderboard/me", handlers.Leaderboard.Mine)

		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		studentAPI.GET("/attempts/:attempt_id/paper", handlers.Attempt.GetPaper)
		studentAPI.POST("/attempts/:attempt_id/answers", answerLimiter.PerUser(), handlers.Attempt.SubmitAnswer)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitAttempt)
		studentAPI.POST("/attempts/:attempt_id/expire", handlers.Attempt.ExpireAttempt)
	}

	// ─── 2. Proctor Group ──────────────────────────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(
		middleware.RequireProctorJWT(authService),
		middleware.NoStore(),
	)
	{
		proctorAPI.POST("/exams/:exam_id/announcements", handlers.Proctor.Announce)
		proctorAPI.POST("/exams/:exam_id/users/:user_id/warnings", handlers.Proctor.Warn)
		proctorAPI.POST("/exams/:exam_id/paper/refresh", handlers.Proctor.RefreshPaper)
		proctorAPI.GET("/exams/:exam_id/roster", handlers.Monitor.Roster)
		proctorAPI.GET("/exams/:exam_id/roster/stream", handlers.Monitor.RosterStream)
		proctorAPI.GET("/exams/:exam_id/leaderboard", handlers.Leaderboard.Top)
		proctorAPI.POST("/attempts/:attempt_id/force-submit", handlers.Proctor.ForceSubmit)
	}

	// ─── 3. Proctoring Channel (token in query) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/proctor", handlers.WS.ProctorChannel)
	}

	return router
}
