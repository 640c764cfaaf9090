package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the ops routes. /health is registered by the server.
func SetupRoutes(router *gin.Engine, handler *Handler, metrics http.Handler) {
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/api/v1")
	{
		agencies := v1.Group("/agencies")
		agencies.GET("/unhealthy", handler.UnhealthyAgencies)
		agencies.POST("/:id/scrape", handler.ScrapeAgency)

		v1.GET("/queue/stats", handler.QueueStats)
		v1.POST("/clean", handler.Clean)
		v1.POST("/classify", handler.Classify)
	}
}
