// Package jsonutil reads loosely typed JSON documents, such as parameter
// values passed on the command line, into the text form the query engine
// converts from.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringValue renders a JSON value as text. Strings are unquoted and numbers
// keep their literal digits, so large integers and decimals lose no
// precision. Objects and arrays are returned as compact JSON. ok is false
// for null and empty input.
func StringValue(raw json.RawMessage) (s string, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	switch raw[0] {
	case '"':
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return str, true
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String(), true
		}
	}
	return string(raw), true
}

// StringValues decodes a JSON object into name/value pairs. Null members map
// to nil; every other member maps to its StringValue.
func StringValues(data []byte) (map[string]any, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	out := make(map[string]any, len(members))
	for name, raw := range members {
		if s, ok := StringValue(raw); ok {
			out[name] = s
		} else {
			out[name] = nil
		}
	}
	return out, nil
}
