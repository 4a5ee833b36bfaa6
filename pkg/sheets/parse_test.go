package sheets_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/tulip/pkg/sheets"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected *time.Time
	}{
		{"2024-01-15", ptr(date(2024, time.January, 15))},
		{"15.01.2024", ptr(date(2024, time.January, 15))},
		{"15/01/2024", ptr(date(2024, time.January, 15))},
		{"2024-01-15 10:30:00", ptr(date(2024, time.January, 15))},
		{"  2024-01-15 ", ptr(date(2024, time.January, 15))},
		{"not a date", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := sheets.ParseDate(tt.input)
		if tt.expected == nil {
			assert.Nil(t, got, "input %q", tt.input)
		} else {
			require.NotNil(t, got, "input %q", tt.input)
			assert.Equal(t, *tt.expected, *got, "input %q", tt.input)
		}
	}
}

func TestExpiryFrom(t *testing.T) {
	signed := date(2024, time.January, 15)
	expires := sheets.ExpiryFrom(&signed)
	require.NotNil(t, expires)
	assert.Equal(t, date(2024, time.March, 15), *expires)

	// year rollover
	signed = date(2024, time.November, 20)
	expires = sheets.ExpiryFrom(&signed)
	require.NotNil(t, expires)
	assert.Equal(t, date(2025, time.January, 20), *expires)

	// day clamped to the end of the shorter month
	signed = date(2024, time.December, 31)
	expires = sheets.ExpiryFrom(&signed)
	require.NotNil(t, expires)
	assert.Equal(t, date(2025, time.February, 28), *expires)

	assert.Nil(t, sheets.ExpiryFrom(nil))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected *int64
	}{
		{"25000000", ptrInt64(25_000_000)},
		{"25 млн", ptrInt64(25_000_000)},
		{"25.5 млн", ptrInt64(25_500_000)},
		{"450 тыс", ptrInt64(450_000)},
		{"1,5 million", ptrInt64(1_500_000)},
		{"тг", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := sheets.ParsePrice(tt.input)
		if tt.expected == nil {
			assert.Nil(t, got, "input %q", tt.input)
		} else {
			require.NotNil(t, got, "input %q", tt.input)
			assert.Equal(t, *tt.expected, *got, "input %q", tt.input)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, truthy := range []string{"TRUE", "true", "1", "да", "ДА", "yes", "Y", "✓", "☑", "checked"} {
		assert.True(t, sheets.ParseBool(truthy), "input %q", truthy)
	}
	for _, falsy := range []string{"", "FALSE", "0", "нет", "no"} {
		assert.False(t, sheets.ParseBool(falsy), "input %q", falsy)
	}
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 5, sheets.ParseInt(" 5 "))
	assert.Equal(t, 0, sheets.ParseInt("five"))
	assert.Equal(t, 0, sheets.ParseInt(""))
}

func ptr(t time.Time) *time.Time {
	return &t
}

func ptrInt64(v int64) *int64 {
	return &v
}
