package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error, unless the
// handler already wrote a response.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := errors.HTTPStatusFromError(err.Err)

		message := err.Error()
		if statusCode >= http.StatusInternalServerError {
			log.Error("Request failed", "error", err.Err, "path", c.Request.URL.Path)
			message = http.StatusText(statusCode)
		}

		c.JSON(statusCode, gin.H{
			"error": message,
		})
	}
}
