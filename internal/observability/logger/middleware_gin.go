package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"

	// ActionKey is the gin context key admin routes use to name their
	// trigger, such as billing_run or export_sepa.
	ActionKey = "admin_action"
)

// RequestLogConfig controls admin request logging.
type RequestLogConfig struct {
	Debug bool
	// Classify maps a handler error to (kind, code) for the log line.
	Classify func(err error) (string, string)
}

// GinMiddleware writes one "admin.request" line per request. Health and
// metrics scrapes log at debug, server errors at error.
func GinMiddleware(cfg RequestLogConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := strings.TrimSpace(c.FullPath())
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("response_bytes", max(c.Writer.Size(), 0)),
		}
		if action := c.GetString(ActionKey); action != "" {
			fields = append(fields, zap.String("action", action))
		}
		if last := c.Errors.Last(); last != nil && cfg.Classify != nil {
			kind, code := cfg.Classify(last.Err)
			fields = append(fields, zap.String("error_kind", kind), zap.String("error_code", code))
			if cfg.Debug {
				fields = append(fields, zap.Error(last.Err))
			}
		}

		log := FromContext(c.Request.Context())
		switch {
		case route == "/health" || route == "/metrics":
			log.Debug("admin.request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("admin.request", fields...)
		default:
			log.Info("admin.request", fields...)
		}
	}
}

// requestIDFor reuses the caller's X-Request-Id or mints one, and echoes it back.
func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(HeaderRequestID, id)
	return id
}
