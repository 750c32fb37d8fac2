package common

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ignatzorin/smartque-backend/internal/http/middleware"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/service"
	"github.com/ignatzorin/smartque-backend/internal/validation"
)

// CurrentUserID достаёт ID пользователя, который положил AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// CurrentUserRole достаёт роль пользователя из контекста.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", apperror.ErrUnauthorized
	}

	role, ok := raw.(string)
	if !ok {
		return "", apperror.ErrUnauthorized
	}

	return role, nil
}

// CurrentActor собирает service.Actor для текущего запроса.
func CurrentActor(c *gin.Context) (service.Actor, error) {
	userID, err := CurrentUserID(c)
	if err != nil {
		return service.Actor{}, err
	}
	role, err := CurrentUserRole(c)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{UserID: userID, Role: role}, nil
}

// ParseUUIDParam читает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.Validation("параметр " + paramName + " обязателен")
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, apperror.Validation("параметр " + paramName + " должен быть валидным UUID")
	}

	return parsed, nil
}

// BindJSON разбирает тело запроса и превращает ошибки биндинга в VALIDATION_ERROR.
func BindJSON(c *gin.Context, req interface{}) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperror.Validation(validation.Humanize(err).Error())
	}
	return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса")
}

// Fail передаёт ошибку в ErrorHandler и прерывает цепочку.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
