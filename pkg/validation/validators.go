package validation

import (
	"portfolio-backend/internal/contactform"
	"portfolio-backend/internal/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// tagFields maps the contact tags to the form field whose rule they apply.
var tagFields = map[string]string{
	"contact_name":    contactform.FieldName,
	"contact_email":   contactform.FieldEmail,
	"contact_message": contactform.FieldMessage,
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	for tag, field := range tagFields {
		_ = v.RegisterValidation(tag, contactRule(field))
	}
	_ = v.RegisterValidation("message_status", MessageStatus)
}

// RegisterWithGin installs the custom tags on gin's binding validator so
// ShouldBindJSON enforces them.
func RegisterWithGin() bool {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return false
	}
	RegisterValidators(v)
	return true
}

// contactRule applies the same rule the contact form uses client side.
func contactRule(field string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return contactform.Validate(field, fl.Field().String()) == ""
	}
}

// MessageStatus accepts new, read and replied.
func MessageStatus(fl validator.FieldLevel) bool {
	return domain.MessageStatus(fl.Field().String()).Valid()
}
