package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	registerCustom(v)
	return v
}

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return ValidateOTPCode(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// RegisterBindingValidations добавляет собственные теги в валидатор gin,
// чтобы их можно было использовать в binding:"..." у DTO.
func RegisterBindingValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustom(v)
	}
}

// Struct проверяет структуру по тегам validate и возвращает первую ошибку в читаемом виде.
func Struct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return Humanize(err)
	}
	return nil
}

// Humanize превращает ошибки validator в короткое сообщение для клиента.
func Humanize(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Errorf("поле %s обязательно", field)
	case "email":
		return fmt.Errorf("поле %s должно быть корректным email", field)
	case "otpcode":
		return fmt.Errorf("код должен состоять из %d цифр", OTPCodeLength)
	case "min":
		return fmt.Errorf("поле %s должно быть не меньше %s", field, fe.Param())
	case "max":
		return fmt.Errorf("поле %s должно быть не больше %s", field, fe.Param())
	case "gte":
		return fmt.Errorf("поле %s не может быть меньше %s", field, fe.Param())
	default:
		return fmt.Errorf("поле %s заполнено некорректно", field)
	}
}
