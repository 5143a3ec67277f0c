package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BindError converts a gin binding failure into an invalid-parameter error
func BindError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, fieldMessage(fieldError))
		}
		return NewError(CodeInvalidParam, strings.Join(messages, "; "))
	}
	return WrapError(err, CodeInvalidParam, "malformed request body")
}

func fieldMessage(fieldError validator.FieldError) string {
	field := camelToSnake(fieldError.Field())
	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	default:
		return fmt.Sprintf("%s validation failed", field)
	}
}

func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// ValidateMonths validates the summary window length
func ValidateMonths(months int) error {
	if months < 1 || months > 36 {
		return NewError(CodeInvalidParam, "months must be between 1 and 36")
	}
	return nil
}
