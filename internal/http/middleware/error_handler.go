package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smartque-backend/internal/dto"
	"github.com/ignatzorin/smartque-backend/internal/logger"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
)

const internalErrorMessage = "внутренняя ошибка сервера"

// ErrorHandler обрабатывает ошибки централизованно.
// AppError отдаётся клиенту как есть, прочие ошибки маскируются и логируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := errorResponse(err)

		entry := logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request error")
		} else {
			entry.Debug("request rejected")
		}

		c.JSON(status, body)
	}
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, dto.ErrorResponse{
			Error: internalErrorMessage,
			Code:  string(apperror.ErrCodeInternal),
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	message := appErr.Message
	if appErr.Code == apperror.ErrCodeInternal {
		message = internalErrorMessage
	}

	return status, dto.ErrorResponse{
		Error:             message,
		Code:              string(appErr.Code),
		AttemptsRemaining: appErr.AttemptsRemaining,
	}
}

// abortWithError прерывает цепочку и сразу пишет ответ об ошибке.
func abortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, body)
}
