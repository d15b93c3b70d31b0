package scopes

import (
	"encoding/json"
	"fmt"

	"github.com/dungeongate/adventured/internal/apierr"
)

// parseArgs decodes the envelope's args sub-object; a missing args is
// equivalent to an empty object.
func parseArgs(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apierr.Invalid("args must be a JSON object")
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

func requireUint(m map[string]interface{}, key string) (uint64, error) {
	v, present := m[key]
	if !present {
		return 0, apierr.Invalid("missing required " + key)
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(int64(f)) {
		return 0, apierr.Invalid("invalid " + key)
	}
	return uint64(f), nil
}

func requireString(m map[string]interface{}, key string) (string, error) {
	v, present := m[key]
	if !present {
		return "", apierr.Invalid("missing required " + key)
	}
	s, ok := v.(string)
	if !ok {
		return "", apierr.Invalid("invalid " + key)
	}
	return s, nil
}

func optionalString(m map[string]interface{}, key, def string) (string, error) {
	v, present := m[key]
	if !present {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", apierr.Invalid("invalid " + key)
	}
	return s, nil
}

func optionalUint(m map[string]interface{}, key string) (*uint64, error) {
	v, present := m[key]
	if !present {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(int64(f)) {
		return nil, apierr.Invalid("invalid " + key)
	}
	u := uint64(f)
	return &u, nil
}

func optionalBool(m map[string]interface{}, key string, def bool) (bool, error) {
	v, present := m[key]
	if !present {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, apierr.Invalid("invalid " + key)
	}
	return b, nil
}

func optionalStringSlice(m map[string]interface{}, key string) ([]string, bool, error) {
	v, present := m[key]
	if !present {
		return nil, false, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false, apierr.Invalid("invalid " + key)
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false, apierr.Invalid("invalid " + key)
		}
		out = append(out, s)
	}
	return out, true, nil
}

// scalarMeta requires a JSON object whose values are all scalars (string,
// number, bool); objects/arrays are rejected.
func scalarMeta(m map[string]interface{}, key string) (map[string]string, error) {
	v, present := m[key]
	if !present {
		return nil, apierr.Invalid("missing required " + key)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, apierr.Invalid("invalid " + key)
	}

	out := make(map[string]string, len(obj))
	for k, val := range obj {
		switch t := val.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = fmt.Sprintf("%v", t)
		case bool:
			out[k] = fmt.Sprintf("%v", t)
		default:
			return nil, apierr.Invalid("meta values cannot be objects or arrays")
		}
	}
	return out, nil
}

// scalarString renders any JSON scalar as its string form, for the
// "entity.output message" argument.
func scalarString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return fmt.Sprintf("%v", t), nil
	case bool:
		return fmt.Sprintf("%v", t), nil
	default:
		return "", apierr.Invalid("message must be a scalar")
	}
}

// extraScalarMeta collects every key of m not in reserved as scalar meta —
// used by "game create" to pre-seed meta from unrecognized top-level args.
func extraScalarMeta(m map[string]interface{}, reserved map[string]bool) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range m {
		if reserved[k] {
			continue
		}
		s, err := scalarString(v)
		if err != nil {
			return nil, apierr.Invalid("meta values cannot be objects or arrays")
		}
		out[k] = s
	}
	return out, nil
}
