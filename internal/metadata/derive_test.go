package metadata

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

func TestTextStats(t *testing.T) {
	stats := TextStats("one two three")
	assert.Equal(t, 3, stats[FieldWordCount])
	assert.Equal(t, 1, stats[FieldReadingTime])

	stats = TextStats(strings.Repeat("word ", 400))
	assert.Equal(t, 400, stats[FieldWordCount])
	assert.Equal(t, 2, stats[FieldReadingTime])

	stats = TextStats("  \n\t ")
	assert.Equal(t, 0, stats[FieldWordCount])
	assert.Equal(t, 1, stats[FieldReadingTime])

	stats = TextStats("a\tb\nc  d")
	assert.Equal(t, 4, stats[FieldWordCount])
}

func TestMediaStats_Derive(t *testing.T) {
	size := int64(5242880)
	dur := 90500 * time.Millisecond
	md := MediaStats{FileSize: &size, Duration: &dur}.Derive()
	assert.Equal(t, int64(5242880), md[FieldFileSize])
	assert.Equal(t, 90.5, md[FieldDurationSeconds])
	assert.NotContains(t, md, FieldStorageBucket)

	md = MediaStats{Storage: &StorageAttrs{Bucket: "b", Key: "k"}}.Derive()
	assert.Equal(t, "b", md[FieldStorageBucket])
	assert.Equal(t, "k", md[FieldStorageKey])
	assert.Equal(t, "", md[FieldETag])
	assert.NotContains(t, md, FieldContentType)
	assert.NotContains(t, md, FieldFileSize)
	assert.NotContains(t, md, FieldDurationSeconds)
}

func TestMerge_PreservesUnrelatedKeys(t *testing.T) {
	base := model.Metadata{"language": "fr", "custom": "x", FieldWordCount: 1}
	merged := Merge(base, TextStats("one two three"))

	assert.Equal(t, "fr", merged["language"])
	assert.Equal(t, "x", merged["custom"])
	assert.Equal(t, 3, merged[FieldWordCount])
	assert.Equal(t, 1, merged[FieldReadingTime])
	assert.Equal(t, 1, base[FieldWordCount], "base must not change")
	assert.NotContains(t, base, FieldReadingTime)
}
