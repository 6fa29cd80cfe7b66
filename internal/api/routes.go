// Package api exposes a DownloadService over HTTP for presentation layers.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/surge-downloader/riptide/internal/core"
)

// Server holds the handlers' dependencies.
type Server struct {
	svc core.DownloadService
}

// NewRouter builds the API engine. An empty token disables authentication.
func NewRouter(svc core.DownloadService, token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	InitRoutes(r, svc, token)
	return r
}

// InitRoutes registers every route on r.
func InitRoutes(r *gin.Engine, svc core.DownloadService, token string) {
	s := &Server{svc: svc}

	r.GET("/health", s.HealthHandler)

	authed := r.Group("/", TokenMiddleware(token))
	{
		authed.GET("/downloads", s.ListHandler)
		authed.POST("/downloads", s.AddHandler)
		authed.POST("/downloads/:gid/pause", s.PauseHandler)
		authed.POST("/downloads/:gid/resume", s.ResumeHandler)
		authed.DELETE("/downloads/:gid", s.RemoveHandler)
		authed.DELETE("/slots/:gid", s.DetachHandler)
		authed.GET("/events", s.SSEHandler)
	}
}
