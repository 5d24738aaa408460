package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// unsetBefore is the end of the first UTC day. The coordinator writes "not
// set" as the epoch in its own zone, which lands within a day of the epoch
// whatever zone it is read in.
var unsetBefore = time.Unix(24*60*60, 0)

// TimeLayout is the coordinator's timestamp format ("Oct 16,2026 02:10:00").
const TimeLayout = "Jan 02,2006 15:04:05"

type timestampKind int

const (
	timestampAbsent timestampKind = iota
	timestampText
	timestampEpoch
)

// Timestamp holds an upstream timestamp as received. It is resolved to a
// time.Time only once the configured location is known.
type Timestamp struct {
	kind   timestampKind
	text   string
	millis int64
}

// TextTimestamp builds a Timestamp from its string form.
func TextTimestamp(s string) Timestamp {
	if strings.TrimSpace(s) == "" {
		return Timestamp{}
	}
	return Timestamp{kind: timestampText, text: s}
}

// EpochTimestamp builds a Timestamp from Unix milliseconds.
func EpochTimestamp(ms int64) Timestamp {
	return Timestamp{kind: timestampEpoch, millis: ms}
}

// UnmarshalJSON accepts null, a string (coordinator layout or RFC 3339) or a
// number of Unix milliseconds.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TextTimestamp(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp must be a string or number: %w", err)
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("invalid epoch timestamp %s: %w", n, err)
		}
		ms = int64(f)
	}
	*t = EpochTimestamp(ms)
	return nil
}

// IsAbsent reports whether no value was supplied at all.
func (t Timestamp) IsAbsent() bool {
	return t.kind == timestampAbsent
}

// String returns the raw form, for log and error messages.
func (t Timestamp) String() string {
	switch t.kind {
	case timestampText:
		return t.text
	case timestampEpoch:
		return fmt.Sprintf("%dms", t.millis)
	default:
		return "<absent>"
	}
}

// Resolve interprets the timestamp in loc. ok is false when the value is
// absent or falls before 1970-01-02 UTC, which the coordinator uses for
// "not set". err is non-nil only for unparsable text.
func (t Timestamp) Resolve(loc *time.Location) (ts time.Time, ok bool, err error) {
	if loc == nil {
		loc = time.Local
	}

	switch t.kind {
	case timestampText:
		ts, err = time.ParseInLocation(TimeLayout, strings.TrimSpace(t.text), loc)
		if err != nil {
			var rfcErr error
			ts, rfcErr = time.Parse(time.RFC3339, strings.TrimSpace(t.text))
			if rfcErr != nil {
				return time.Time{}, false, fmt.Errorf("unparsable timestamp %q: %w", t.text, err)
			}
		}
	case timestampEpoch:
		ts = time.UnixMilli(t.millis).In(loc)
	default:
		return time.Time{}, false, nil
	}

	if ts.Before(unsetBefore) {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}
