package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a server-assigned creation time that may not be assigned yet.
// The zero value is unset.
type Timestamp struct {
	t   time.Time
	set bool
}

// ServerTimestamp wraps a time assigned by the store.
func ServerTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t, set: true}
}

// UnsetTimestamp returns a timestamp the store has not assigned yet.
func UnsetTimestamp() Timestamp {
	return Timestamp{}
}

// Time returns the wrapped time and whether it was set.
func (ts Timestamp) Time() (time.Time, bool) {
	return ts.t, ts.set
}

// IsSet reports whether the store has assigned the timestamp.
func (ts Timestamp) IsSet() bool {
	return ts.set
}

func (ts Timestamp) String() string {
	if !ts.set {
		return "unset"
	}
	return ts.t.Format(time.RFC3339Nano)
}

// MarshalJSON encodes an unset timestamp as null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.set {
		return []byte("null"), nil
	}
	return json.Marshal(ts.t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts null or an RFC 3339 string.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	*ts = ServerTimestamp(t)
	return nil
}
