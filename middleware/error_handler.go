package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"legalestate/utils"
)

// ErrorHandler reports errors handlers attached with c.Error after the response is written.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		for _, ginErr := range c.Errors {
			logger.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Int("status", c.Writer.Status()),
				zap.Error(ginErr.Err),
			)
			utils.CaptureError(ginErr.Err, map[string]any{
				"endpoint": c.Request.URL.Path,
				"method":   c.Request.Method,
				"status":   c.Writer.Status(),
			})
		}
	}
}
