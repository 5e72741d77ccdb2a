package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/drivetest-backend/internal/config"
	"github.com/stemsi/drivetest-backend/internal/handler"
	"github.com/stemsi/drivetest-backend/internal/middleware"
	"github.com/stemsi/drivetest-backend/internal/response"
	"github.com/stemsi/drivetest-backend/internal/service"
)

// UploadsPath is where locally stored images are served from.
const UploadsPath = "/uploads"

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Exam      *handler.ExamHandler
	WS        *handler.WSHandler
	Question  *handler.QuestionHandler
	Media     *handler.MediaHandler
	Dashboard *handler.DashboardHandler
	Billing   *handler.BillingHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as rate limiter cleanup.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Local uploads never change once written: cache for a year.
	if !cfg.S3.Enabled() {
		uploads := router.Group(UploadsPath)
		uploads.Use(middleware.CacheControl(31536000))
		uploads.Static("/", cfg.UploadDir)
	}

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "data_source": cfg.DataSource})
	})

	requireAuth := middleware.RequireAuth(authService)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/signup", authLimiter.Middleware(), handlers.Auth.Signup)
		auth.GET("/me", requireAuth, handlers.Auth.Me)
	}

	// ─── 2. Shared reads (any signed-in user) ──────────────────────────
	api := router.Group("/api/v1")
	api.Use(requireAuth)
	{
		api.GET("/questions/categories", handlers.Question.ListCategories)
	}

	// ─── 3. Student Group (JWT, own rows only) ─────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(requireAuth)
	{
		studentAPI.POST("/exams", handlers.Exam.StartExam)
		studentAPI.GET("/exams", handlers.Exam.ListHistory)
		studentAPI.GET("/exams/:id", handlers.Exam.GetExam)
		studentAPI.POST("/exams/:id/answer", handlers.Exam.SelectAnswer)
		studentAPI.POST("/exams/:id/advance", handlers.Exam.Advance)
		studentAPI.POST("/exams/:id/retreat", handlers.Exam.Retreat)
		studentAPI.POST("/exams/:id/submit", handlers.Exam.Submit)
		studentAPI.GET("/exams/:id/result", handlers.Exam.GetResult)

		studentAPI.POST("/subscriptions", handlers.Billing.Subscribe)
		studentAPI.GET("/subscriptions/active", handlers.Billing.GetActiveSubscription)
		studentAPI.GET("/payments", handlers.Billing.ListPayments)
	}

	// ─── 4. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/student/exams/:id/stream", handlers.WS.ExamStream)
	}

	// ─── 5. Admin Group (JWT + admin role) ─────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(requireAuth, middleware.RequireAdmin())
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.Overview)

		adminAPI.GET("/questions", handlers.Question.ListQuestions)
		adminAPI.GET("/questions/:id", handlers.Question.GetQuestion)
		adminAPI.POST("/questions", handlers.Question.CreateQuestion)
		adminAPI.PUT("/questions/:id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Question.DeleteQuestion)

		adminAPI.POST("/media/upload", handlers.Media.UploadImage)
	}

	return router
}
