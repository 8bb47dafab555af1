package auth

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// Account is a registered user. Email is unique across accounts and
// PasswordHash is never the plaintext.
type Account struct {
	ID           ID
	Username     string
	Email        string
	PasswordHash string
}

// ID is assigned by the storage collaborator on Store.
type ID int64

var (
	ErrInvalidEmail       = &Error{Kind: InvalidInput, Msg: "bad email"}
	ErrWeakPassword       = &Error{Kind: InvalidInput, Msg: "weak password"}
	ErrPasswordTooLong    = &Error{Kind: InvalidInput, Msg: "password too long"}
	ErrEmailTaken         = &Error{Kind: Conflict, Msg: "email taken"}
	ErrInvalidCredentials = &Error{Kind: Unauthorized, Msg: "invalid credentials"}
)

// Storage errors returned by Repository implementations.
var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

const minPasswordLength = 8

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidEmail reports whether s looks like local@domain.tld. It is a purely
// syntactic check.
func ValidEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// StrongPassword reports whether s has at least eight characters, an ASCII
// digit and an ASCII uppercase letter.
func StrongPassword(s string) bool {
	if utf8.RuneCountInString(s) < minPasswordLength {
		return false
	}

	var digit, upper bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'A' && c <= 'Z':
			upper = true
		}
	}
	return digit && upper
}
