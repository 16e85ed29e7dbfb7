package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-console/internal/middleware"
	"clinic-console/pkg/metrics"
)

// Handler registers a group of related routes.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Router assembles the console's HTTP surface.
type Router struct {
	engine *gin.Engine
}

func New(m *metrics.Metrics, handlers ...Handler) *Router {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
	)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	api := engine.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return &Router{engine: engine}
}

// Engine exposes the underlying gin engine for the HTTP server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
