package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

func (s *Server) HealthHandler(c *gin.Context) {
	state := "unknown"
	if overview, err := s.svc.List(c.Request.Context()); err == nil && overview.DaemonState != "" {
		state = overview.DaemonState
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "daemon_state": state})
}

func (s *Server) ListHandler(c *gin.Context) {
	overview, err := s.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) AddHandler(c *gin.Context) {
	var entries []types.Entry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no entries"})
		return
	}

	results, err := s.svc.Add(c.Request.Context(), entries)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) PauseHandler(c *gin.Context) {
	gid := c.Param("gid")
	if err := s.svc.Pause(c.Request.Context(), gid); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gid": gid, "status": "paused"})
}

func (s *Server) ResumeHandler(c *gin.Context) {
	gid := c.Param("gid")
	if err := s.svc.Resume(c.Request.Context(), gid); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gid": gid, "status": "resumed"})
}

func (s *Server) RemoveHandler(c *gin.Context) {
	gid := c.Param("gid")
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err := s.svc.Remove(c.Request.Context(), gid, force); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gid": gid, "status": "removed"})
}

func (s *Server) DetachHandler(c *gin.Context) {
	detached, err := s.svc.Detach(c.Request.Context(), c.Param("gid"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detached": detached})
}
