package utils

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("user_role", validateUserRole)
		_ = validate.RegisterValidation("strong_password", validateStrongPassword)
	})
	return validate
}

func ValidateStruct(s interface{}) error {
	return Validator().Struct(s)
}

// ValidationMessage flattens validator output into a single client-facing sentence.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		case "strong_password":
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, ErrPasswordPolicy.Error()))
		case "user_role":
			msgs = append(msgs, fmt.Sprintf("%s must be one of USER, MODERATOR, ADMIN", field))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case "USER", "MODERATOR", "ADMIN":
		return true
	}
	return false
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	return ValidatePassword(fl.Field().String()) == nil
}
