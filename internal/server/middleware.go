package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds the request context. The limit is read per request
// so a reloaded fee config applies without a restart.
func RequestTimeout(limit func() time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := limit()
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
