package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalid wraps field validation failures (title, kind, tag name).
	ErrInvalid = errors.New("invalid input")
	// ErrKindImmutable is returned when an update tries to change a capture's kind.
	ErrKindImmutable = errors.New("capture kind cannot change after creation")
	// ErrDetailMismatch is returned when a payload does not fit the capture kind.
	ErrDetailMismatch = errors.New("detail does not match capture kind")
	// ErrForeignTag is returned when a tag id is unknown or owned by someone else.
	ErrForeignTag = errors.New("tag does not belong to capture owner")
	// ErrForeignIntegration is returned when a sync names another user's integration.
	ErrForeignIntegration = errors.New("integration does not belong to capture owner")
	// ErrNoMedia is returned when a media operation finds no stored file.
	ErrNoMedia = errors.New("capture has no stored media file")
)

var validate = validator.New()

func validateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
