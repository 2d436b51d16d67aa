package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// streamChannel relays hub messages for one channel as server-sent events
// until the client disconnects.
func (h *handlers) streamChannel(c *gin.Context) {
	channel := c.Param("channel")
	if channel == "" || channel == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	messages, cancel := h.deps.Hub.Subscribe(channel)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	var keepAlive <-chan time.Time
	if h.deps.KeepAlive > 0 {
		ticker := time.NewTicker(h.deps.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.SSEvent("message", string(msg.Data))
			c.Writer.Flush()
		case <-keepAlive:
			if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
