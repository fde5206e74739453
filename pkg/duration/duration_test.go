package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "90s", 90 * time.Second, false},
		{"bare number is seconds", "120", 120 * time.Second, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"hours", "4h", 4 * time.Hour, false},
		{"days", "30d", 30 * Day, false},
		{"weeks", "2w", 2 * Week, false},
		{"combined", "1w2d12h", Week + 2*Day + 12*time.Hour, false},
		{"float days", "1.5d", 36 * time.Hour, false},
		{"standard go", "1h30m", 90 * time.Minute, false},
		{"invalid", "soon", 0, true},
		{"unknown unit", "5x", 0, true},
		{"garbage between units", "5x3d", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0s"},
		{90 * time.Second, "1m30s"},
		{Day, "1d"},
		{Week + 2*Day, "1w2d"},
		{Week + 2*Day + 12*time.Hour, "1w2d12h0m0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Format(tt.d))
	}
}
