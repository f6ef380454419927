package api

import (
	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/handlers"
	"github.com/gymstack/gymstack/internal/middleware"
)

func registerCheckInRoutes(api *gin.RouterGroup, deps Deps) {
	checkinHandler := handlers.NewCheckInHandler(deps.Sessions, deps.Scans)

	checkin := api.Group("/checkin")
	{
		checkin.POST("/sessions", middleware.RequireStaff(), checkinHandler.OpenSession)
		checkin.DELETE("/sessions/:id", middleware.RequireStaff(), checkinHandler.CloseSession)
		checkin.GET("/sessions/:id", middleware.RequireStaff(), checkinHandler.GetSession)
		checkin.GET("/sessions/:id/qr", middleware.RequireStaff(), checkinHandler.SessionQR)

		checkin.POST("/scan", checkinHandler.Scan)
	}

	if deps.Hub != nil {
		realtimeHandler := handlers.NewRealtimeHandler(deps.Hub)
		api.GET("/realtime/occupancy", realtimeHandler.Occupancy)
	}
}
