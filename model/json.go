package model

import (
	"bytes"
	"encoding/json"
)

// UnmarshalJSON keeps context numbers exact: integral values decode to int64
// and the rest to float64.
func (t *InstanceTree) UnmarshalJSON(data []byte) error {
	type plain InstanceTree
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var decoded plain
	if err := dec.Decode(&decoded); err != nil {
		return err
	}
	for _, p := range decoded.Processes {
		if p != nil {
			normalizeNumbers(p.Context)
		}
	}
	for _, a := range decoded.Activities {
		if a != nil {
			normalizeNumbers(a.Context)
		}
	}
	*t = InstanceTree(decoded)
	return nil
}

// normalizeNumbers replaces json.Number values in place, descending into maps
// and lists.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return v
	}
}
