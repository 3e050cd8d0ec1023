package member

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	MaxOrgNameLen = 128

	// bcrypt учитывает только первые 72 байта пароля
	maxPasswordBytes = 72
)

// loginPattern логин участника: строчные буквы, цифры и . _ - @, от 3 до 32 символов
var loginPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._@-]{2,31}$`)

// Validator проверяет учетные данные участника до записи
type Validator interface {
	ValidateMember(login, password string) error
	ValidateLogin(login string) error
}

// Policy требования к логину и паролю участника
type Policy struct {
	MinPasswordLen int
}

func NewPolicy() *Policy {
	return &Policy{MinPasswordLen: 8}
}

// ValidateMember возвращает все нарушения сразу
func (p *Policy) ValidateMember(login, password string) error {
	return errors.Join(p.ValidateLogin(login), p.validatePassword(login, password))
}

func (p *Policy) ValidateLogin(login string) error {
	if !loginPattern.MatchString(login) {
		return fmt.Errorf("login %q: 3-32 lowercase letters, digits or . _ - @", login)
	}
	return nil
}

func (p *Policy) validatePassword(login, password string) error {
	var problems []error

	if len([]rune(password)) < p.MinPasswordLen {
		problems = append(problems, fmt.Errorf("password must be at least %d characters", p.MinPasswordLen))
	}
	if len(password) > maxPasswordBytes {
		problems = append(problems, fmt.Errorf("password must be at most %d bytes", maxPasswordBytes))
	}
	if !strings.ContainsFunc(password, unicode.IsLetter) || !strings.ContainsFunc(password, unicode.IsDigit) {
		problems = append(problems, errors.New("password must mix letters and digits"))
	}
	if login != "" && strings.Contains(strings.ToLower(password), login) {
		problems = append(problems, errors.New("password must not contain the login"))
	}

	return errors.Join(problems...)
}
