package contactform

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field names of the contact form.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"
)

// Fields lists the form fields in display order.
var Fields = []string{FieldName, FieldEmail, FieldMessage}

const (
	MinNameLength    = 3
	MinMessageLength = 10
)

// Error texts. An empty string means the value is valid.
const (
	ErrNameRequired    = "name is required"
	ErrNameTooShort    = "name must be at least 3 characters"
	ErrEmailRequired   = "email is required"
	ErrEmailFormat     = "enter a valid email address (e.g. name@domain.com)"
	ErrMessageRequired = "message cannot be empty"
	ErrMessageTooShort = "tell me a bit more (at least 10 characters)"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// ValidEmail matches the whole value, surrounding whitespace included.
func ValidEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// Validate returns the error text for field, or "" when v is acceptable.
// Unknown fields never carry an error.
func Validate(field, v string) string {
	trimmed := strings.TrimSpace(v)
	switch field {
	case FieldName:
		if trimmed == "" {
			return ErrNameRequired
		}
		if utf8.RuneCountInString(trimmed) < MinNameLength {
			return ErrNameTooShort
		}
	case FieldEmail:
		if trimmed == "" {
			return ErrEmailRequired
		}
		if !ValidEmail(v) {
			return ErrEmailFormat
		}
	case FieldMessage:
		if trimmed == "" {
			return ErrMessageRequired
		}
		if utf8.RuneCountInString(trimmed) < MinMessageLength {
			return ErrMessageTooShort
		}
	}
	return ""
}

// ValidateAll runs every rule over values.
func ValidateAll(values map[string]string) map[string]string {
	errs := make(map[string]string, len(Fields))
	for _, f := range Fields {
		errs[f] = Validate(f, values[f])
	}
	return errs
}
