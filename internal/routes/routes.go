package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/handlers"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/middleware"
	"healsync-portal/internal/models"
	"healsync-portal/internal/session"
)

// Handlers bundles everything the route table mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Appointments *handlers.AppointmentHandler
	Booking      *handlers.BookingHandler
	Chat         *handlers.ChatHandler
	Treatment    *handlers.TreatmentHandler
	Schedule     *handlers.ScheduleHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ready is probed by /health when set, typically a store ping.
	Ready func(ctx context.Context) error
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, h Handlers, sessions *session.Manager, logger *logging.Logger) {
	auth := middleware.AuthMiddleware(sessions, logger)
	patient := middleware.RoleAuthMiddleware(models.RolePatient)
	doctor := middleware.RoleAuthMiddleware(models.RoleDoctor)
	admin := middleware.RoleAuthMiddleware(models.RoleAdmin)
	participant := middleware.RoleAuthMiddleware(models.RolePatient, models.RoleDoctor)

	// Public pages (no session required)
	router.GET("/", h.Auth.Root)
	router.GET("/login", h.Auth.LoginPage)
	router.POST("/login", h.Auth.Login)
	router.POST("/logout", h.Auth.Logout)
	router.GET("/register", h.Auth.RegisterPage)
	router.POST("/register", h.Auth.Register)
	router.GET("/forgot-password", h.Auth.ForgotPasswordPage)
	router.POST("/forgot-password", h.Auth.ForgotPassword)
	router.GET("/reset-password", h.Auth.ResetPasswordPage)
	router.POST("/reset-password", h.Auth.ResetPassword)

	// Pages behind a session
	pages := router.Group("/", auth)
	{
		pages.GET("/patient", patient, h.Appointments.PatientDashboard)
		pages.GET("/doctor", doctor, h.Appointments.DoctorDashboard)
		pages.GET("/admin", admin, h.Appointments.AdminDashboard)

		pages.POST("/appointments/:id/status", h.Appointments.UpdateStatusForm)
		pages.POST("/appointments/:id/reschedule", h.Appointments.RescheduleForm)

		pages.GET("/doctors", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin), h.Booking.DoctorsPage)
		pages.GET("/book", patient, h.Booking.BookPage)
		pages.POST("/book", patient, h.Booking.Book)

		pages.GET("/doctor/schedule", doctor, h.Schedule.Page)
		pages.POST("/doctor/schedule", doctor, h.Schedule.SaveForm)

		pages.GET("/treatment-plans", h.Treatment.Page)
		pages.POST("/treatment-plans", doctor, h.Treatment.CreateForm)

		chatPages := pages.Group("/chat", participant)
		{
			chatPages.GET("/open", h.Chat.OpenPage)
			chatPages.GET("/:sessionId", h.Chat.Page)
			chatPages.POST("/:sessionId/messages", h.Chat.SendForm)
			chatPages.GET("/:sessionId/events", h.Chat.Events)
			chatPages.GET("/:sessionId/ws", h.Chat.Socket)
		}
	}

	// Public API routes
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/login", h.Auth.LoginAPI)
			authRoutes.POST("/register", h.Auth.RegisterAPI)
			authRoutes.POST("/logout", h.Auth.LogoutAPI)
		}
		public.POST("/session/restore", h.Auth.Restore)
	}

	// Authenticated API routes
	private := router.Group("/api/v1", auth)
	{
		private.GET("/auth/me", h.Auth.Me)

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("", h.Appointments.ListAppointments)
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin), h.Booking.BookAPI)
			appointmentRoutes.GET("/:id", h.Appointments.GetAppointment)
			appointmentRoutes.PUT("/:id/status", h.Appointments.UpdateStatus)
			appointmentRoutes.PUT("/:id/reschedule", h.Appointments.Reschedule)
		}

		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.GET("", h.Booking.ListDoctors)
			doctorRoutes.GET("/:id", h.Booking.GetDoctor)
			doctorRoutes.GET("/:id/slots", h.Booking.Slots)
			doctorRoutes.GET("/:id/schedule", h.Schedule.GetSchedule)
		}
		private.PUT("/schedule", doctor, h.Schedule.SaveSchedule)

		chatRoutes := private.Group("/chat", participant)
		{
			chatRoutes.POST("/sessions", h.Chat.OpenSession)
			chatRoutes.GET("/sessions/:sessionId/messages", h.Chat.Messages)
			chatRoutes.POST("/sessions/:sessionId/messages", h.Chat.SendMessage)
			chatRoutes.PUT("/messages/:messageId/read", h.Chat.MarkRead)
		}

		private.GET("/treatment-plans", h.Treatment.ListPlans)
		private.POST("/treatment-plans", doctor, h.Treatment.CreatePlan)
		private.GET("/catalogues", h.Treatment.Catalogues)
		private.GET("/emergency-services", h.Appointments.EmergencyServices)
	}

	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if h.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := h.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
