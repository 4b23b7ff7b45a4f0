package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Password and identifier limits.
const (
	MinUsernameLength    = 3
	MaxUsernameLength    = 50
	MinPasswordLength    = 8
	MaxPasswordLength    = 72 // bcrypt ignores bytes beyond 72
	MaxDisplayNameLength = 100
	maxEmailLength       = 254
)

// Global validator instance for reuse
var validate = validator.New()

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation.
// It unwraps to ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap returns ErrValidation so callers can match with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationResult is the typed outcome of an explicit validation function.
type ValidationResult struct {
	fields []FieldError
}

func (r *ValidationResult) add(field, message string) {
	r.fields = append(r.fields, FieldError{Field: field, Message: message})
}

// OK reports whether validation passed.
func (r ValidationResult) OK() bool {
	return len(r.fields) == 0
}

// Fields returns the failed fields in the order they were checked.
func (r ValidationResult) Fields() []FieldError {
	return r.fields
}

// Err returns nil when validation passed, otherwise a *ValidationError.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Fields: r.fields}
}

// ValidateRegistration checks registration input before any identity lookup.
func ValidateRegistration(email, username, password, displayName string) ValidationResult {
	var result ValidationResult

	if !IsValidEmail(strings.TrimSpace(email)) {
		result.add("email", "must be a valid email address")
	}

	if !IsValidUsername(strings.TrimSpace(username)) {
		result.add("username", fmt.Sprintf(
			"must be %d-%d characters of letters, digits, '_', '.' or '-'",
			MinUsernameLength, MaxUsernameLength))
	}

	if err := CheckPasswordStrength(password); err != nil {
		result.add("password", passwordPolicyMessage())
	}

	if len(strings.TrimSpace(displayName)) > MaxDisplayNameLength {
		result.add("display_name", fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength))
	}

	return result
}

// ValidateLogin checks that login input is present. It does not apply the
// password policy or its length bound; the verifier rejects anything that
// cannot match as invalid credentials.
func ValidateLogin(emailOrUsername, password string) ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(emailOrUsername) == "" {
		result.add("email_or_username", "is required")
	}
	if password == "" {
		result.add("password", "is required")
	}

	return result
}

// ValidatePasswordChange checks a password change request.
func ValidatePasswordChange(currentPassword, newPassword string) ValidationResult {
	var result ValidationResult

	if currentPassword == "" {
		result.add("current_password", "is required")
	}
	if err := CheckPasswordStrength(newPassword); err != nil {
		result.add("new_password", passwordPolicyMessage())
	} else if newPassword == currentPassword {
		result.add("new_password", "must differ from the current password")
	}

	return result
}

// IsValidEmail reports whether email is a well-formed address.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	return validate.Var(email, "email") == nil
}

// IsValidUsername reports whether username satisfies the length and charset rules.
func IsValidUsername(username string) bool {
	n := len(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return false
	}
	return usernamePattern.MatchString(username)
}

// CheckPasswordStrength enforces the minimum-strength policy: 8 to 72 bytes with at
// least one upper-case letter, one lower-case letter, one digit and one symbol.
func CheckPasswordStrength(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrWeakPassword
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			symbol = true
		}
	}

	if !upper || !lower || !digit || !symbol {
		return ErrWeakPassword
	}
	return nil
}

func passwordPolicyMessage() string {
	return fmt.Sprintf(
		"must be %d-%d bytes and contain upper-case, lower-case, digit and symbol characters",
		MinPasswordLength, MaxPasswordLength)
}
