package server

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"thailaw-council/pkg/logger"
)

// setSSEHeaders prepares the response for Server-Sent Events.
func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}

// sendSSEEvent writes one event in SSE framing and flushes it.
func sendSSEEvent(c *gin.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE event")
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", jsonData)
	c.Writer.Flush()
}

// sendSSEError sends an error-type event.
func sendSSEError(c *gin.Context, message string) {
	sendSSEEvent(c, gin.H{"type": "error", "message": message})
}
