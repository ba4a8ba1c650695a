package webhook

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/pkg/models"
)

func (s *Server) requireSecret(c *gin.Context) {
	if s.secret == "" {
		c.Next()
		return
	}
	got := c.GetHeader(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	c.Next()
}

// emailReceived handles POST /webhooks/email-received.
func (s *Server) emailReceived(c *gin.Context) {
	var in models.InboundEmail
	if err := c.ShouldBindJSON(&in); err != nil {
		s.log.Warn("Invalid inbound email payload", logger.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload: " + err.Error()})
		return
	}

	res := s.proc.ProcessIncomingEmail(c.Request.Context(), in)
	if s.metrics != nil {
		s.metrics.ObserveInbound(string(res.DetectedStatus), res.Success, res.Forwarded)
	}
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// health handles GET /health.
func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}
