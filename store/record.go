package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// toObject marshals a record or patch to a JSON object and checks its keys against the table.
func toObject(table string, v any) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	for k := range obj {
		if err := checkColumn(table, k); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func sortedKeys(obj map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeInto(raw []byte, dst any) error {
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func marshalObject(obj map[string]json.RawMessage) (string, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(b), nil
}
