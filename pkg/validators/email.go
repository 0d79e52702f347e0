// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	ErrEmailEmpty   = errors.New("Email is required")
	ErrEmailInvalid = errors.New("Invalid email address")
)

// NormalizeEmail lowercases and trims an address before it's stored or looked up
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if err := validate.Var(e, "email,max=254"); err != nil {
		return ErrEmailInvalid
	}

	return nil
}
