package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampZeroValueIsUnset(t *testing.T) {
	var ts Timestamp
	assert.False(t, ts.IsSet())
	assert.Equal(t, UnsetTimestamp(), ts)

	_, ok := ts.Time()
	assert.False(t, ok)
}

func TestTimestampJSON(t *testing.T) {
	when := time.Date(2024, 3, 7, 9, 5, 0, 123, time.UTC)

	msg := Message{ID: "01", Room: "general", Content: "hi", Author: "a@x.com", Timestamp: ServerTimestamp(when)}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	got, ok := decoded.Timestamp.Time()
	require.True(t, ok)
	assert.True(t, got.Equal(when))

	pending := Message{ID: "02", Content: "pending"}
	data, err = json.Marshal(pending)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Timestamp":null`)

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Timestamp.IsSet())
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
}
