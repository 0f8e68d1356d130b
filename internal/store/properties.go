package store

import (
	"encoding/json"
	"fmt"
	"math"
)

// normalizeProperties validates a property map and returns the node ID and a
// copy in which every number is a float64. Nothing is written on error.
func normalizeProperties(props map[string]any) (string, map[string]any, error) {
	rawID, ok := props["id"]
	if !ok {
		return "", nil, ErrMissingID
	}
	id, ok := rawID.(string)
	if !ok || id == "" {
		return "", nil, fmt.Errorf("%w: id must be a non-empty string, got %v", ErrMissingID, rawID)
	}

	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "" {
			return "", nil, fmt.Errorf("%w: empty property name", ErrInvalidProperty)
		}
		nv, err := normalizeScalar(v)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidProperty, k, err)
		}
		out[k] = nv
	}
	return id, out, nil
}

func normalizeScalar(v any) (any, error) {
	var f float64
	switch x := v.(type) {
	case string, bool:
		return x, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil, err
		}
		f = parsed
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return f, nil
}

// mergeProperties applies incoming over existing, last write wins per key.
func mergeProperties(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func copyProperties(props map[string]any) map[string]any {
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}

// checkWeight enforces weight in [0, +Inf).
func checkWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("%w: %v (must be finite and >= 0)", ErrInvalidWeight, w)
	}
	return nil
}
