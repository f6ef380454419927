package api

import (
	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/handlers"
	"github.com/gymstack/gymstack/internal/middleware"
)

func registerClassRoutes(api *gin.RouterGroup, deps Deps) {
	classHandler := handlers.NewClassHandler(deps.Classes, deps.Enrollments)
	enrollmentHandler := handlers.NewEnrollmentHandler(deps.Enrollments)

	classes := api.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.POST("", middleware.RequireStaff(), classHandler.Create)
		classes.DELETE("/:id", middleware.RequireStaff(), classHandler.Delete)

		classes.POST("/:id/enroll", enrollmentHandler.Enroll)
		classes.DELETE("/:id/enroll", enrollmentHandler.Cancel)
		classes.GET("/:id/roster", middleware.RequireStaff(), enrollmentHandler.Roster)
		classes.GET("/:id/waitlist", middleware.RequireStaff(), enrollmentHandler.Waitlist)
	}
}
