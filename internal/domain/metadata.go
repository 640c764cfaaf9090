package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"maps"
)

// Metadata is free-form platform provenance stored as JSONB.
type Metadata map[string]any

// Clone deep-copies nested maps and slices. Scalars are copied by value.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Metadata:
		return t.Clone()
	case map[string]any:
		return map[string]any(Metadata(t).Clone())
	case map[string]string:
		return maps.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for Metadata")
	}
	if len(data) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer. Empty metadata is stored as "{}".
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
