package model

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// MinPasswordLength is the shortest password accepted on registration.
	MinPasswordLength = 6
)

var (
	emailPattern        = regexp.MustCompile(`\S+@\S+\.\S+`)
	leadingDigitPattern = regexp.MustCompile(`^\d`)
)

// ValidationError describes malformed user input. It is shown to the user
// and never treated as an internal failure.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validation error codes.
const (
	CodeInvalidEmail   = "INVALID_EMAIL"
	CodeWeakPassword   = "WEAK_PASSWORD"
	CodeNameRequired   = "NAME_REQUIRED"
	CodeEmailTaken     = "EMAIL_TAKEN"
	CodeBadCredentials = "INVALID_CREDENTIALS"
	CodeMissingInput   = "MISSING_INPUT"
	CodeInvalidStatus  = "INVALID_STATUS"
)

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateEmail checks the address shape. Addresses may not start with a digit.
func ValidateEmail(email string) error {
	if leadingDigitPattern.MatchString(email) {
		return &ValidationError{Field: "email", Code: CodeInvalidEmail, Message: "email should not start with a number"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Code: CodeInvalidEmail, Message: "please provide a standard email format"}
	}
	return nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Code: CodeWeakPassword, Message: "password must be at least 6 characters"}
	}
	return nil
}

// ValidateName requires a non-blank display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Code: CodeNameRequired, Message: "name is required"}
	}
	return nil
}
