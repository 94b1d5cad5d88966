package forum

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Limits are the maximum lengths (in characters) the server accepts.
// A zero limit disables the length check.
type Limits struct {
	Username    int
	ThreadTitle int
	PostContent int
}

// DefaultLimits mirrors the forum server's defaults.
func DefaultLimits() Limits {
	return Limits{
		Username:    50,
		ThreadTitle: 200,
		PostContent: 1000,
	}
}

// ValidationError is a local input error that never reaches the server.
type ValidationError struct {
	Field   string
	Tag     string // validator tag that failed: "required" or "max"
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Missing reports whether the input was empty after trimming.
func (e *ValidationError) Missing() bool {
	return e.Tag == "required"
}

// Validator checks user input before it is sent to the server.
type Validator struct {
	validate *validator.Validate
	limits   Limits
}

// NewValidator creates a validator enforcing limits.
func NewValidator(limits Limits) *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limits:   limits,
	}
}

// Limits returns the configured limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Username trims and checks a display name.
func (v *Validator) Username(name string) (string, error) {
	return v.check(name, "username", v.limits.Username, "Please enter a username", "Username")
}

// ThreadTitle trims and checks a thread title.
func (v *Validator) ThreadTitle(title string) (string, error) {
	return v.check(title, "title", v.limits.ThreadTitle, "Please enter a thread title", "Thread title")
}

// PostContent trims and checks message content.
func (v *Validator) PostContent(content string) (string, error) {
	return v.check(content, "content", v.limits.PostContent, "Please enter a message", "Message")
}

func (v *Validator) check(raw, field string, limit int, missingMsg, label string) (string, error) {
	value := strings.TrimSpace(raw)

	if err := v.validate.Var(value, "required"); err != nil {
		return "", &ValidationError{Field: field, Tag: "required", Message: missingMsg}
	}
	if limit > 0 {
		if err := v.validate.Var(value, fmt.Sprintf("max=%d", limit)); err != nil {
			return "", &ValidationError{
				Field:   field,
				Tag:     "max",
				Message: fmt.Sprintf("%s too long (max %d)", label, limit),
			}
		}
	}
	return value, nil
}
