package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/escolar/internal/observability/logger"
	"go.uber.org/zap"
)

// AdminRateLimit throttles an expensive admin trigger. Limiter failures let
// the request through.
func (s *Server) AdminRateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(obslogger.ActionKey, action)
		allowed, retryAfter, err := s.limiter.Allow(c.Request.Context(), action)
		if err != nil {
			s.log.Warn("admin rate limit unavailable", zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			s.metrics.IncAdminThrottled(action)
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
