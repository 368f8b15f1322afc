package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTimeRoundTrip(t *testing.T) {
	original := LocalTime(time.Date(2026, 8, 6, 12, 30, 45, 0, time.Local))

	b, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"2026-08-06 12:30:45"`, string(b))

	var decoded LocalTime
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, original.Time().Format(timeFormat), decoded.Time().Format(timeFormat))
}

func TestLocalTimeUnmarshalEmpty(t *testing.T) {
	var decoded LocalTime
	require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
	assert.True(t, decoded.Time().IsZero())
}
