package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
)

// LendingPauseMiddleware blocks new loan applications while paused. Scoring,
// eligibility previews and other reads keep working.
func LendingPauseMiddleware(paused bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !paused {
			c.Next()
			return
		}
		c.Error(apperrors.New(apperrors.ErrReadOnly, "loan applications are paused", nil))
		c.Abort()
	}
}
