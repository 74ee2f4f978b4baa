package metadata

import (
	"encoding/json"
	"strconv"
	"time"
)

// UnixTime is a UTC timestamp serialized as Unix epoch seconds.
type UnixTime struct {
	time.Time
}

// Now returns the current time truncated to whole seconds, so it survives a
// JSON round trip unchanged.
func Now() UnixTime {
	return UnixTime{time.Now().UTC().Truncate(time.Second)}
}

// FromUnix builds a UnixTime from epoch seconds.
func FromUnix(sec int64) UnixTime {
	return UnixTime{time.Unix(sec, 0).UTC()}
}

func (t UnixTime) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, t.Unix(), 10), nil
}

func (t *UnixTime) UnmarshalJSON(b []byte) error {
	var sec int64
	if err := json.Unmarshal(b, &sec); err != nil {
		return err
	}
	*t = FromUnix(sec)
	return nil
}

// IsStale reports whether a file modified at modTime needs re-reading given
// a record last updated at lastUpdated. The mtime keeps its full precision
// while lastUpdated holds whole seconds, so an edit later in the same second
// as the last write is still stale. Equal instants are fresh.
func IsStale(modTime time.Time, lastUpdated UnixTime) bool {
	return modTime.After(lastUpdated.Time)
}
