package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxEmailLength      = 254
	MinNameLength       = 1
	MaxNameLength       = 100
	MaxDoctorNameLength = 150
	MaxDepartmentLength = 100
	MaxConsultationFee  = 10000000.0
	OTPCodeLength       = 6
)

var otpCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// NormalizeEmail обрезает пробелы и приводит email к нижнему регистру.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
// Адрес должен содержать "@" и точку в доменной части.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	if len(email) > MaxEmailLength {
		return fmt.Errorf("email не может быть длиннее %d символов", MaxEmailLength)
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("некорректный формат email")
	}

	domainPart := email[at+1:]
	if !strings.Contains(domainPart, ".") || strings.HasPrefix(domainPart, ".") || strings.HasSuffix(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	if strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("email не может содержать пробелы")
	}

	return nil
}

// ValidateOTPCode проверяет, что код состоит ровно из 6 цифр.
func ValidateOTPCode(code string) error {
	if !otpCodeRegex.MatchString(code) {
		return fmt.Errorf("код должен состоять из %d цифр", OTPCodeLength)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateName проверяет имя пользователя.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("имя обязательно")
	}
	return ValidateLength("имя", name, MinNameLength, MaxNameLength)
}

// ValidateDepartment проверяет название отделения.
func ValidateDepartment(department string) error {
	if err := ValidateNonEmpty("отделение", department); err != nil {
		return err
	}
	return ValidateLength("отделение", strings.TrimSpace(department), 1, MaxDepartmentLength)
}

// ValidateDoctorName проверяет имя врача.
func ValidateDoctorName(doctor string) error {
	if err := ValidateNonEmpty("имя врача", doctor); err != nil {
		return err
	}
	return ValidateLength("имя врача", strings.TrimSpace(doctor), 1, MaxDoctorNameLength)
}

// ValidateConsultationFee проверяет стоимость консультации.
func ValidateConsultationFee(fee float64) error {
	if fee < 0 {
		return fmt.Errorf("стоимость консультации не может быть отрицательной")
	}
	if fee > MaxConsultationFee {
		return fmt.Errorf("стоимость консультации не может превышать %.0f", MaxConsultationFee)
	}
	return nil
}
