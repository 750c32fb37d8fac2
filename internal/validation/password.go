package validation

import (
	"fmt"
)

// Границы длины пароля в байтах. bcrypt не учитывает байты после 72-го.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// ValidatePassword проверяет длину пароля.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("пароль должен быть не более %d байт", MaxPasswordLength)
	}
	return nil
}
