// Package jsonorder walks JSON objects member by member in document order.
//
// The coordinator API returns rosters, job windows and role maps as JSON
// objects. Decoding them into Go maps loses member order, which the
// aggregation relies on for "first encountered" and "last owner wins" rules.
package jsonorder

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ForEach calls fn for every member of the JSON object in data, in the order
// the members appear. A JSON null or empty input yields no calls. Any other
// non-object value is an error.
func ForEach(data []byte, fn func(key string, value json.RawMessage) error) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read object start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read member key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected member key, got %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("read member %q: %w", key, err)
		}

		if err := fn(key, value); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read object end: %w", err)
	}

	return nil
}

// IsObject reports whether data holds a JSON object.
func IsObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
