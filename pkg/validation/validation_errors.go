package validation

import (
	"errors"
	"fmt"
	"strings"

	"portfolio-backend/internal/contactform"

	"github.com/go-playground/validator/v10"
)

// FieldLabels maps struct field names to user-facing labels
var FieldLabels = map[string]string{
	"Name":     "Name",
	"Email":    "Email",
	"Message":  "Message",
	"Status":   "Status",
	"Password": "Password",
	"OTP":      "One-time code",
}

// FormatValidationErrors converts validator.ValidationErrors to user-friendly messages
func FormatValidationErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{"invalid request body"}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatSingleError(e))
	}
	return messages
}

func formatSingleError(e validator.FieldError) string {
	label := getFieldLabel(e.Field())

	switch tag := e.Tag(); tag {
	case "required":
		if field, ok := fieldForLabel(e.Field()); ok {
			return fmt.Sprintf("%s: %s", label, contactform.Validate(field, ""))
		}
		return fmt.Sprintf("%s: is required", label)
	case "contact_name", "contact_email", "contact_message":
		value, _ := e.Value().(string)
		return fmt.Sprintf("%s: %s", label, contactform.Validate(tagFields[tag], value))
	case "message_status":
		return fmt.Sprintf("%s: must be one of new, read, replied", label)
	case "email":
		return fmt.Sprintf("%s: invalid email format", label)
	case "len":
		return fmt.Sprintf("%s: must be exactly %s characters", label, e.Param())
	default:
		return fmt.Sprintf("%s: failed validation (%s)", label, tag)
	}
}

// fieldForLabel reports whether a struct field is one of the contact form fields.
func fieldForLabel(structField string) (string, bool) {
	name := strings.ToLower(structField)
	for _, f := range contactform.Fields {
		if f == name {
			return f, true
		}
	}
	return "", false
}

func getFieldLabel(fieldName string) string {
	if label, ok := FieldLabels[fieldName]; ok {
		return label
	}
	return formatCamelCase(fieldName)
}

// formatCamelCase converts CamelCase to spaced words
func formatCamelCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune(' ')
		}
		result.WriteRune(r)
	}
	return result.String()
}
