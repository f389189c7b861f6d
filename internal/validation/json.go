package validation

import (
	"encoding/json"
	"fmt"
)

// DecodeSchema unmarshals data into a map and rejects any key not present
// in allowedKeys, before the caller does anything further with the value.
// External-API JSON responses must go through this before being promoted to
// artifacts or dashboard field writes.
func DecodeSchema(data []byte, allowedKeys map[string]bool) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	for k := range m {
		if !allowedKeys[k] {
			return nil, fmt.Errorf("unexpected field %q in response", k)
		}
	}
	return m, nil
}
