package validators

import "errors"

var (
	ErrPasswordTooShort = errors.New("Minimum 6 characters required")
	ErrPasswordTooLong  = errors.New("Password is too long")
	ErrPasswordEmpty    = errors.New("Password is required")
	ErrNameEmpty        = errors.New("Name is required")
	ErrNameTooLong      = errors.New("Name is too long")
	ErrCodeInvalid      = errors.New("Invalid code!")
)

// PasswordValidator checks a password that is about to be stored
func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if err := validate.Var(p, "min=6"); err != nil {
		return ErrPasswordTooShort
	}

	// argon2 doesn't care, but nobody needs more than this
	if err := validate.Var(p, "max=255"); err != nil {
		return ErrPasswordTooLong
	}

	return nil
}

// LoginPasswordValidator only checks presence, old passwords may predate the length rules
func LoginPasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	return nil
}

func NameValidator(n string) error {
	if n == "" {
		return ErrNameEmpty
	}

	if err := validate.Var(n, "max=128"); err != nil {
		return ErrNameTooLong
	}

	return nil
}

// CodeValidator accepts an empty code or exactly 6 digits
func CodeValidator(c string) error {
	if c == "" {
		return nil
	}

	if err := validate.Var(c, "len=6,numeric"); err != nil {
		return ErrCodeInvalid
	}

	return nil
}
