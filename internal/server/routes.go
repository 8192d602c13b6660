package server

import (
	"github.com/OFFIS-RIT/rulegraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/rulegraph/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	graphRoutes := apiRoutes.Group("/campaigns/:campaign_id/graph")
	graphRoutes.GET("", routes.GetGraphHandler)
	graphRoutes.GET("/nodes/:node_id/dependencies", routes.GetNodeDependenciesHandler)
	graphRoutes.GET("/nodes/:node_id/dependents", routes.GetNodeDependentsHandler)
	graphRoutes.GET("/cycles", routes.GetGraphCyclesHandler)
	graphRoutes.GET("/order", routes.GetEvaluationOrderHandler)
	graphRoutes.POST("/invalidate", routes.InvalidateGraphHandler, middleware.RequirePermission("graph.invalidate"))
}
