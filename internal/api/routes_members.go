package api

import (
	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/handlers"
	"github.com/gymstack/gymstack/internal/middleware"
)

func registerMemberRoutes(api *gin.RouterGroup, deps Deps) {
	memberHandler := handlers.NewMemberHandler(deps.Members)

	members := api.Group("/members", middleware.RequireStaff())
	{
		members.POST("", memberHandler.Register)
		members.GET("", memberHandler.List)
		members.GET("/:id", memberHandler.Get)
		members.DELETE("/:id", memberHandler.Deactivate)
	}
}
