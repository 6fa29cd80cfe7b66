package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/utils"
)

// SSEHandler streams engine events until the client goes away. The event
// name is the message kind and the data is its JSON encoding.
func (s *Server) SSEHandler(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup, err := s.svc.StreamEvents(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("message", "connected")
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			utils.Debug("SSE client disconnected")
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				utils.Debug("SSE marshal error: %v", err)
				continue
			}
			c.SSEvent(events.Kind(msg), string(data))
			c.Writer.Flush()
		}
	}
}
