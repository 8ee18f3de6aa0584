package server

import (
	"github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware, middleware.RateLimit)
	view := middleware.RequirePermission("network.view")

	// Network query routes
	apiRoutes.GET("/network", routes.GetNetworkHandler, view)
	apiRoutes.GET("/entities/:id/neighbors", routes.GetNeighborsHandler, view)
	apiRoutes.POST("/network/refresh", routes.RefreshNetworkHandler, middleware.RequirePermission("network.refresh"))

	// Layout routes
	apiRoutes.GET("/network/layout/stream", routes.StreamLayoutHandler, view)
	apiRoutes.GET("/network/layout/:view_id", routes.GetLayoutHandler, view)
	apiRoutes.POST("/network/layout/:view_id/freeze", routes.FreezeLayoutHandler, view)
	apiRoutes.POST("/network/layout/:view_id/resume", routes.ResumeLayoutHandler, view)
	apiRoutes.POST("/network/layout/:view_id/drag", routes.DragNodeHandler, view)
	apiRoutes.POST("/network/layout/:view_id/release", routes.ReleaseNodeHandler, view)
	apiRoutes.DELETE("/network/layout/:view_id", routes.DeleteLayoutHandler, view)
}
