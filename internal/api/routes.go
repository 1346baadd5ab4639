package api

import (
	"github.com/gin-gonic/gin"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

// Handlers groups every HTTP handler mounted under /api
type Handlers struct {
	Auth         *AuthHandler
	Triage       *TriageHandler
	Chat         *ChatHandler
	Appointments *AppointmentHandler
	Records      *RecordHandler
	Admin        *AdminHandler
}

// Register mounts the API routes. Every group except registration, login
// and refresh requires a valid access token for an active account in users;
// perUser is applied after authentication.
func (h *Handlers) Register(router gin.IRouter, tokens middleware.TokenValidator, users middleware.UserLookup, perUser gin.HandlerFunc) {
	authenticated := []gin.HandlerFunc{middleware.JWTAuth(tokens, users)}
	if perUser != nil {
		authenticated = append(authenticated, perUser)
	}
	staff := middleware.RequireRole(auth.RoleDoctor, auth.RoleAdmin)
	doctor := middleware.RequireRole(auth.RoleDoctor)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)

		me := authGroup.Group("", authenticated...)
		me.POST("/logout", h.Auth.Logout)
		me.GET("/profile", h.Auth.Profile)
		me.PUT("/profile", h.Auth.UpdateProfile)
		me.PUT("/change-password", h.Auth.ChangePassword)
	}

	triageGroup := router.Group("/api/triage", authenticated...)
	{
		triageGroup.POST("", middleware.RequireRole(auth.RolePatient), h.Triage.Submit)
		triageGroup.GET("/my-triages", h.Triage.Mine)
		triageGroup.GET("/stats", staff, h.Triage.Stats)
		triageGroup.GET("/all", staff, h.Triage.All)
		triageGroup.GET("/:id", h.Triage.Get)
		triageGroup.PUT("/:id/review", doctor, h.Triage.Review)
	}

	appointments := router.Group("/api/appointments", authenticated...)
	{
		appointments.POST("", middleware.RequireRole(auth.RolePatient), h.Appointments.Create)
		appointments.GET("/my-appointments", h.Appointments.Mine)
		appointments.GET("/doctors", h.Appointments.Doctors)
		appointments.PUT("/:id/status", h.Appointments.UpdateStatus)
		appointments.PUT("/:id/prescription", doctor, h.Appointments.Prescribe)
	}

	chatGroup := router.Group("/api/chat", authenticated...)
	{
		chatGroup.POST("/start", h.Chat.Start)
		chatGroup.GET("", h.Chat.List)
		chatGroup.GET("/:chatId/messages", h.Chat.Messages)
		chatGroup.POST("/:chatId/messages", h.Chat.Send)
	}

	records := router.Group("/api/records", authenticated...)
	{
		records.POST("", doctor, h.Records.Create)
		records.GET("/patient/:patientId", h.Records.ForPatient)
		records.GET("/my-records", h.Records.Mine)
		records.GET("/:id", h.Records.Get)
		records.PUT("/:id", doctor, h.Records.Update)
	}

	admin := router.Group("/api/admin", authenticated...)
	admin.Use(middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/stats", h.Admin.Stats)
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id", h.Admin.UpdateUser)
		admin.PUT("/users/:id/toggle-status", h.Admin.ToggleStatus)
		admin.PUT("/doctors/:id/verify", h.Admin.VerifyDoctor)
		admin.DELETE("/users/:id", h.Admin.DeleteUser)
	}
}
