package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
)

var (
	ErrNoUpdateData = errors.New("no update data provided")
	ErrValidation   = errors.New("validation failed")
)

// ErrForbidden is returned when the caller's role does not allow the action.
var ErrForbidden = rbac.ErrForbidden

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// requireText trims value and checks it is non-empty and within max runes.
func requireText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", validationError("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return "", validationError("%s must be less than %d characters", field, max)
	}
	return value, nil
}

func limitText(field, value string, max int) (string, error) {
	if utf8.RuneCountInString(value) > max {
		return "", validationError("%s must be less than %d characters", field, max)
	}
	return value, nil
}
