package callback

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/provisio/provisio/pkg/logger"
)

// Register mounts the callback endpoint under the provided router group.
// Path: POST /workflow_callback
func Register(r *gin.RouterGroup, g *Gateway) {
	r.POST("/workflow_callback", func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx).With(
			"request_id", requestCorrelationID(c.Request),
			"client_ip", clientIP(c.Request),
		)
		ctx = logger.ContextWithLogger(ctx, log)
		log.Debug("callback request received")
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			res := rejection(http.StatusBadRequest, "request body ill-formed")
			c.JSON(res.Status, res.Payload)
			return
		}
		res, _ := g.Process(ctx, payload)
		c.JSON(res.Status, res.Payload)
	})
}

func requestCorrelationID(r *http.Request) string {
	if v := r.Header.Get("X-Correlation-ID"); v != "" {
		return v
	}
	if v := r.Header.Get("X-Request-ID"); v != "" {
		return v
	}
	return uuid.NewString()
}

// clientIP prefers the first hop of X-Forwarded-For over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}
