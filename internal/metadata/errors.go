package metadata

import (
	"fmt"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// MissingFieldError reports a required field that is absent.
type MissingFieldError struct {
	Kind  model.Kind
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s metadata: missing required field %q", e.Kind, e.Field)
}

// TypeMismatchError reports a field whose value has the wrong scalar type.
type TypeMismatchError struct {
	Kind  model.Kind
	Field string
	Want  FieldType
	Got   any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s metadata: field %q must be %s, got %T", e.Kind, e.Field, e.Want, e.Got)
}

// UnknownCaptureKindError is a configuration error: the caller asked for the
// schema of a kind the registry does not know.
type UnknownCaptureKindError struct {
	Kind model.Kind
}

func (e *UnknownCaptureKindError) Error() string {
	return fmt.Sprintf("unknown capture kind %q", e.Kind)
}
