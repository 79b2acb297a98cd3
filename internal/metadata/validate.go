package metadata

import (
	"encoding/json"
	"errors"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// Validate checks md against the schema of kind and returns every violation
// joined into one error; use errors.As to pick out a *MissingFieldError or
// *TypeMismatchError. An empty mapping is not validated: callers fill it with
// defaults first. Fields outside the schema are allowed.
func Validate(kind model.Kind, md model.Metadata) error {
	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}
	if len(md) == 0 {
		return nil
	}
	var errs []error
	for _, name := range schema.Fields() {
		want := schema[name]
		v, ok := md[name]
		if !ok {
			errs = append(errs, &MissingFieldError{Kind: kind, Field: name})
			continue
		}
		if !hasType(want, v) {
			errs = append(errs, &TypeMismatchError{Kind: kind, Field: name, Want: want, Got: v})
		}
	}
	return errors.Join(errs...)
}

// IsValidationError reports whether err carries a schema violation.
func IsValidationError(err error) bool {
	var missing *MissingFieldError
	var mismatch *TypeMismatchError
	return errors.As(err, &missing) || errors.As(err, &mismatch)
}

func hasType(want FieldType, v any) bool {
	switch want {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		return isInteger(v)
	case TypeFloat:
		// JSON has one number type, so 30.0 comes back from storage as 30.
		switch v.(type) {
		case float32, float64:
			return true
		}
		return isInteger(v)
	}
	return false
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Normalize rewrites json.Number values produced by a decoder with UseNumber
// into int64 when integral and float64 otherwise. Other values are untouched.
func Normalize(md model.Metadata) model.Metadata {
	for k, v := range md {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			md[k] = i
			continue
		}
		if f, err := n.Float64(); err == nil {
			md[k] = f
			continue
		}
		md[k] = n.String()
	}
	return md
}
