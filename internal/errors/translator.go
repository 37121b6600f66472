package errors

import (
	"errors"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TranslateValidation 将validator错误转换为配置错误
//
// Each failing field becomes one line of the message so a missing API key and
// a bad port are reported together.
func TranslateValidation(err error) *AppError {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewConfigError("invalid configuration").WithCause(err)
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		messages = append(messages, validationMessage(fieldError))
		fields = append(fields, fieldError.Namespace())
	}
	return NewConfigError(strings.Join(messages, "; ")).WithDetails(fields)
}

// IsTimeout reports whether err (or anything it wraps) is a network timeout.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func validationMessage(fieldError validator.FieldError) string {
	field := fieldError.Namespace()
	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "gte":
		return field + " must be greater than or equal to " + fieldError.Param()
	case "lte":
		return field + " must be less than or equal to " + fieldError.Param()
	case "ltfield":
		return field + " must be less than " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}
