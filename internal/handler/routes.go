package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/middleware"
	"github.com/kuliahku/kuliahku-api/internal/service"
	"github.com/kuliahku/kuliahku-api/pkg/config"
)

// Services bundles the application services needed by the HTTP surface.
type Services struct {
	Auth       *service.AuthService
	Users      *service.UserService
	Subjects   *service.SubjectService
	Attendance *service.AttendanceService
	Metrics    *service.MetricsService
}

// RegisterRoutes wires every endpoint onto the router. Auth endpoints are
// public; everything else sits behind the identity-resolving middleware.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, services Services, logger *zap.Logger) {
	authHandler := NewAuthHandler(services.Auth, services.Users, cfg.Cookie, logger)
	userHandler := NewUserHandler(services.Users, services.Auth, logger)
	subjectHandler := NewSubjectHandler(services.Subjects, logger)
	attendanceHandler := NewAttendanceHandler(services.Attendance, logger)
	metricsHandler := NewMetricsHandler(services.Metrics)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(services.Auth, cfg.Cookie, logger))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.PUT("/user/profile", userHandler.UpdateProfile)
		protected.POST("/user/change-password", userHandler.ChangePassword)

		protected.POST("/subjects", subjectHandler.Create)
		protected.GET("/subjects", subjectHandler.List)
		protected.DELETE("/subjects", subjectHandler.DeleteAll)
		protected.GET("/subjects/:id", subjectHandler.Get)
		protected.PUT("/subjects/:id", subjectHandler.Update)
		protected.DELETE("/subjects/:id", subjectHandler.Delete)
		protected.POST("/subjects/:id/reschedules", subjectHandler.AppendReschedule)
		protected.PATCH("/subjects/:id/attendance", attendanceHandler.Update)

		// The scan flow and the history write are the same operation; both
		// paths land on the transactional check-in.
		protected.POST("/attendance/check-in", attendanceHandler.CheckIn)
		protected.POST("/attendance-history", attendanceHandler.CheckIn)
		protected.GET("/attendance-history", attendanceHandler.History)
		protected.GET("/attendance-history/export", attendanceHandler.Export)
		protected.GET("/attendance-status", attendanceHandler.Status)
		protected.GET("/attendance/summary", attendanceHandler.Summary)
	}
}
