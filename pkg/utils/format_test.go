package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0m", FormatDuration(0))
	assert.Equal(t, "0m", FormatDuration(-5))
	assert.Equal(t, "0m", FormatDuration(59))
	assert.Equal(t, "1m", FormatDuration(60))
	assert.Equal(t, "45m", FormatDuration(45*60))
	assert.Equal(t, "1h 0m", FormatDuration(3600))
	assert.Equal(t, "3h 24m", FormatDuration(3*3600+24*60))
	assert.Equal(t, "27h 5m", FormatDuration(27*3600+5*60+30))
}

func TestFormatCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1,000", FormatCount(1000))
	assert.Equal(t, "12,345", FormatCount(12345))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
	assert.Equal(t, "-1,234", FormatCount(-1234))
}
