package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2d")))
	assert.Equal(t, 48*time.Hour, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1w"`), &d))
	assert.Equal(t, 7*24*time.Hour, d.Duration())

	// Bare numbers decode as nanoseconds.
	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, d.Duration())

	out, err := json.Marshal(Duration(26 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, `"1d2h0m0s"`, string(out))
}
