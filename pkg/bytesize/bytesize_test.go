package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Size
		wantErr  bool
	}{
		{"bytes", "1024", 1024, false},
		{"kilobytes", "800KB", 800 * KB, false},
		{"megabytes", "8MB", 8 * MB, false},
		{"gigabytes", "50GB", 50 * GB, false},
		{"terabytes", "1TB", TB, false},
		{"with space", "5 MB", 5 * MB, false},
		{"lowercase", "5mb", 5 * MB, false},
		{"binary unit", "2GiB", 2 * GB, false},
		{"float", "1.5MB", Size(1.5 * float64(MB)), false},
		{"zero", "0", 0, false},
		{"invalid", "plenty", 0, true},
		{"unknown unit", "5xb", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, size)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		size     Size
		expected string
	}{
		{50 * GB, "50GB"},
		{8 * MB, "8MB"},
		{800 * KB, "800KB"},
		{512, "512B"},
		{Size(1.5 * float64(GB)), "1.5GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Format(tt.size))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []Size{0, 1, KB, 800 * KB, 8 * MB, 50 * GB} {
		parsed, err := Parse(Format(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}
