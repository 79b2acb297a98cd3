package metadata

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

func TestValidate_EmptyIsSkipped(t *testing.T) {
	for _, kind := range model.Kinds {
		assert.NoError(t, Validate(kind, nil))
		assert.NoError(t, Validate(kind, model.Metadata{}))
	}
}

func TestValidate_MissingEachField(t *testing.T) {
	reg := NewRegistry("bucket")
	for _, kind := range model.Kinds {
		schema, err := SchemaFor(kind)
		require.NoError(t, err)
		for _, field := range schema.Fields() {
			md, err := reg.DefaultsFor(kind)
			require.NoError(t, err)
			delete(md, field)

			err = Validate(kind, md)
			var missing *MissingFieldError
			require.True(t, errors.As(err, &missing), "%s/%s: %v", kind, field, err)
			assert.Equal(t, field, missing.Field)
			assert.Equal(t, kind, missing.Kind)
			assert.True(t, IsValidationError(err))
		}
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	md, err := NewRegistry("").DefaultsFor(model.KindAudio)
	require.NoError(t, err)
	md[FieldBitRate] = "128k"

	err = Validate(model.KindAudio, md)
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch), err)
	assert.Equal(t, FieldBitRate, mismatch.Field)
	assert.Equal(t, TypeInt, mismatch.Want)
	assert.Equal(t, "128k", mismatch.Got)
}

func TestValidate_TypeRules(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value any
		ok    bool
	}{
		{"int for int", FieldBitRate, int64(64000), true},
		{"float for int", FieldBitRate, 64000.0, false},
		{"bool for int", FieldChannels, true, false},
		{"int for float", FieldFrameRate, 24, true},
		{"float for float", FieldFrameRate, 23.976, true},
		{"string for float", FieldFrameRate, "24", false},
		{"int for string", FieldCodec, 264, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			md, err := NewRegistry("").DefaultsFor(model.KindVideo)
			require.NoError(t, err)
			md[tc.field] = tc.value
			err = Validate(model.KindVideo, md)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsValidationError(err), err)
			}
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	md := model.Metadata{FieldLanguage: 7}
	err := Validate(model.KindText, md)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"language" must be string`)
	assert.Contains(t, err.Error(), `missing required field "source_device"`)
	assert.Contains(t, err.Error(), `missing required field "word_count"`)
	assert.Contains(t, err.Error(), `missing required field "reading_time"`)
}

func TestValidate_ExtraFieldsAllowed(t *testing.T) {
	md, err := NewRegistry("").DefaultsFor(model.KindText)
	require.NoError(t, err)
	md["custom"] = "x"
	md["mood"] = 3.5
	assert.NoError(t, Validate(model.KindText, md))
}

func TestNormalize_JSONNumbers(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"word_count": 12, "frame_rate": 29.97, "language": "en"}`))
	dec.UseNumber()
	var md model.Metadata
	require.NoError(t, dec.Decode(&md))
	Normalize(md)

	assert.Equal(t, int64(12), md["word_count"])
	assert.Equal(t, 29.97, md["frame_rate"])
	assert.Equal(t, "en", md["language"])
}
