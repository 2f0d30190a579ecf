// Package http wires the gin router.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/config"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/http/handler"
	httpmw "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/http/middleware"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/middleware"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/service"
)

// RouterParams bundles everything the router mounts.
type RouterParams struct {
	Config  config.Config
	Logger  *zap.Logger
	Pool    *pgxpool.Pool
	Auth    *service.AuthService
	Users   *service.UserService
	Tasks   *service.TaskService
	Habits  *service.HabitService
	Limiter *middleware.RateLimiter
}

// NewRouter builds the full route table.
func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(p.Config.ServiceName))
	r.Use(httpmw.RequestLogger(p.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   p.Config.CORSAllowedOrigins,
		AllowedMethods:   p.Config.CORSAllowedMethods,
		AllowedHeaders:   p.Config.CORSAllowedHeaders,
		AllowCredentials: p.Config.CORSAllowCredentials,
	}))
	r.Use(p.Limiter.Handler())

	authHandler := handler.NewAuthHandler(p.Auth)
	userHandler := handler.NewUserHandler(p.Users)
	taskHandler := handler.NewTaskHandler(p.Tasks)
	habitHandler := handler.NewHabitHandler(p.Habits)

	requireAuth := httpmw.RequireAuth(p.Auth)
	requireAdmin := httpmw.RequireAdmin()

	r.GET("/healthz", func(c *gin.Context) {
		if err := p.Pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := r.Group("/users")
	{
		users.POST("", authHandler.Register)
		users.POST("/login", authHandler.Login)
		users.POST("/refresh", authHandler.Refresh)
		users.POST("/logout", authHandler.Logout)

		users.GET("/me", requireAuth, userHandler.Me)
		users.GET("", requireAuth, userHandler.List)
		users.GET("/:id", requireAuth, userHandler.Get)
		users.PUT("/:id", requireAuth, userHandler.Update)
		users.DELETE("/:id", requireAuth, requireAdmin, userHandler.Delete)
		users.POST("/bulk", requireAuth, requireAdmin, userHandler.BulkCreate)
		users.GET("/admin/all-users", requireAuth, requireAdmin, userHandler.ListAll)
	}

	auth := r.Group("/auth")
	{
		auth.POST("/email/send-otp", authHandler.SendEmailOTP)
		auth.POST("/email/verify-otp", authHandler.VerifyEmailOTP)
		auth.POST("/phone/send-otp", authHandler.SendPhoneOTP)
		auth.POST("/phone/verify-otp", authHandler.VerifyPhoneOTP)
		auth.POST("/phone/verify", authHandler.VerifyExternal)
		auth.POST("/google", authHandler.VerifyExternal)
	}

	tasks := r.Group("/tasks", requireAuth)
	{
		tasks.POST("", taskHandler.Create)
		tasks.GET("", taskHandler.List)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Delete)
		tasks.GET("/admin/all", requireAdmin, taskHandler.ListAll)
	}

	habits := r.Group("/habits", requireAuth)
	{
		habits.POST("", habitHandler.Create)
		habits.GET("", habitHandler.List)
		habits.GET("/logs", habitHandler.Logs)
		habits.POST("/:id/toggle", habitHandler.Toggle)
		habits.DELETE("/:id", habitHandler.Delete)
	}

	return r
}
