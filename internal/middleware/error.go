package middleware

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
)

// ErrorHandler renders the last error a handler pushed with c.Error as an
// AppError body. Unknown errors become 500 and their cause is only logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		appErr := asAppError(last.Err)
		reportError(c, appErr)

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		}
	}
}

func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.New(apperrors.ErrInternal, "internal error", err)
}

func reportError(c *gin.Context, appErr *apperrors.AppError) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx).With(
		slog.String("method", c.Request.Method),
		slog.String("route", c.FullPath()),
		slog.String("client_id", ClientID(c)),
		slog.String("code", string(appErr.Type)),
	)
	if appErr.HTTPStatus < 500 {
		log.WarnContext(ctx, appErr.Message)
		return
	}
	log.ErrorContext(ctx, "request failed", slog.Any("error", appErr))
}
