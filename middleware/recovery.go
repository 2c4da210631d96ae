package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery middleware recovers from panics and logs the error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				attrs := []any{
					"error", err,
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				}
				if route := c.FullPath(); route != "" {
					attrs = append(attrs, "route", route)
				}
				if tenant := GetTenant(c); tenant != "" {
					attrs = append(attrs, "tenant", tenant, "username", GetUsername(c))
				}
				if batchID := c.Param("id"); batchID != "" {
					attrs = append(attrs, "batch_id", batchID)
				}
				attrs = append(attrs, "stack", string(debug.Stack()))

				slog.Error("panic recovered", attrs...)

				// Return 500 error
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}
