package logging

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// GinLogrusLogger returns a Gin middleware handler that logs HTTP requests
// and responses through logrus, tagging each request with an X-Request-Id.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		requestID := c.Request.Header.Get("X-Request-Id")
		if strings.TrimSpace(requestID) == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		} else {
			latency = latency.Truncate(time.Millisecond)
		}

		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(log.Fields{
			"request_id": requestID,
			"status":     statusCode,
			"latency":    latency.String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
		})
		line := fmt.Sprintf("%3d | %13v | %-7s %s", statusCode, latency, c.Request.Method, path)
		if errorMessage != "" {
			line = line + " | " + errorMessage
		}
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(line)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(line)
		default:
			entry.Debug(line)
		}
	}
}

// GinRecovery returns a Gin middleware handler that recovers from panics,
// logs the stack, and answers 500.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"path":  c.Request.URL.Path,
					"panic": err,
				}).Errorf("recovered from handler panic\n%s", debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"message": "internal server error"},
				})
			}
		}()
		c.Next()
	}
}
