package middleware

import (
	"net/http"

	"socialhub/internal/services"
	"socialhub/internal/transport/httpdto"
	"socialhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error when the
// handler did not write a response itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	l = logger.OrNop(l)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			l.WithContext(c.Request.Context()).Error("request error", zap.Error(err))
			c.JSON(status, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
			return
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), httpdto.ErrorCode(status)))
	}
}
