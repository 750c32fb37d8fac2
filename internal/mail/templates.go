package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const (
	otpSubject   = "Your SmarTQue Verification Code"
	resetSubject = "Reset your SmarTQue password"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #6C63FF; padding: 32px; text-align: center; color: white;">
    <h1 style="margin: 0;">SmarTQue</h1>
    <p>Email Verification</p>
  </div>
  <div style="padding: 32px; border: 1px solid #e0e0e0;">
    <h2>Your Verification Code</h2>
    <p style="font-size: 40px; letter-spacing: 10px; font-family: monospace; text-align: center;">{{.Code}}</p>
    <p>Enter this 6-digit code in the app to verify your email address.</p>
    <p><strong>This code expires in {{.Minutes}} minutes.</strong></p>
    <p>Never share this code with anyone.</p>
  </div>
</div>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #6C63FF; padding: 32px; text-align: center; color: white;">
    <h1 style="margin: 0;">SmarTQue</h1>
    <p>Password Reset</p>
  </div>
  <div style="padding: 32px; border: 1px solid #e0e0e0;">
    <p>Hello {{.Name}},</p>
    <p>We received a request to reset your password. Follow the link below to choose a new one.</p>
    <p style="text-align: center;"><a href="{{.Link}}">Reset password</a></p>
    <p>The link expires in {{.Minutes}} minutes. If you did not request a reset, ignore this email.</p>
  </div>
</div>`))

// OTPEmail возвращает тему и HTML письма с кодом подтверждения.
func OTPEmail(code string, ttl time.Duration) (string, string, error) {
	body, err := render(otpTemplate, struct {
		Code    string
		Minutes int
	}{code, int(ttl.Minutes())})
	if err != nil {
		return "", "", err
	}
	return otpSubject, body, nil
}

// ResetEmail возвращает тему и HTML письма со ссылкой на сброс пароля.
func ResetEmail(name, link string, ttl time.Duration) (string, string, error) {
	body, err := render(resetTemplate, struct {
		Name    string
		Link    string
		Minutes int
	}{name, link, int(ttl.Minutes())})
	if err != nil {
		return "", "", err
	}
	return resetSubject, body, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: не удалось собрать письмо %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
