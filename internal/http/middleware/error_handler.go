package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/abhishek00112233/LMS-Backend/internal/dto"
	"github.com/abhishek00112233/LMS-Backend/internal/logger"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/apperror"
)

const msgInternal = "Internal server error"

// ErrorHandler renders the last error attached to the context as {message}.
// AppErrors keep their status and message; anything else becomes an opaque 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.Wrap(err, apperror.ErrCodeInternal, msgInternal)
		}

		entry := logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   appErr.Code,
			"status": appErr.HTTPStatus,
		})
		if appErr.HTTPStatus >= 500 {
			entry.WithError(err).Error("request failed")
		} else {
			entry.WithField("reason", appErr.Message).Warn("request rejected")
		}

		c.JSON(appErr.HTTPStatus, dto.MessageResponse{Message: appErr.Message})
	}
}
