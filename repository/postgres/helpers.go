package postgres

import (
	"encoding/json"
	"time"
)

func marshalJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func unmarshalMap(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
