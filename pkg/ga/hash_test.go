package ga

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordHashDeterministic(t *testing.T) {
	a := RecordHash("12345", []string{"20240101", "desktop"})
	b := RecordHash("12345", []string{"20240101", "desktop"})

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestRecordHashOrderSensitive(t *testing.T) {
	a := RecordHash("12345", []string{"desktop", "20240101"})
	b := RecordHash("12345", []string{"20240101", "desktop"})

	assert.NotEqual(t, a, b)
}

func TestRecordHashViewSensitive(t *testing.T) {
	a := RecordHash("12345", []string{"desktop"})
	b := RecordHash("67890", []string{"desktop"})

	assert.NotEqual(t, a, b)
}

func TestRecordHashEmptyDimensions(t *testing.T) {
	assert.NotEmpty(t, RecordHash("12345", nil))
}
