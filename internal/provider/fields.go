package provider

// Object is a loosely decoded JSON object from the SIP control-plane API.
// The API has shipped both camelCase and snake_case payload shapes across
// versions, so responses are kept untyped and read through the accessors
// below rather than unmarshalled into structs with fixed tags.
type Object = map[string]any

// Field returns the first present, non-nil value for the given candidate
// keys, scanning in order. Call sites list the shapes they tolerate
// explicitly, e.g. Field(obj, "sipTrunkId", "sip_trunk_id", "id").
func Field(obj Object, keys ...string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// StringField returns the first candidate key whose value is a non-empty
// string, or "".
func StringField(obj Object, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// StringsField returns the first candidate key whose value is a string
// array. Both []string and the []any produced by encoding/json are
// accepted; non-string elements are skipped. Returns nil if no candidate
// key holds an array.
func StringsField(obj Object, keys ...string) []string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		switch arr := v.(type) {
		case []string:
			return arr
		case []any:
			out := make([]string, 0, len(arr))
			for _, e := range arr {
				if s, ok := e.(string); ok {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

// ObjectField returns the first candidate key whose value is a JSON object.
func ObjectField(obj Object, keys ...string) (Object, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if m, ok := v.(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// ObjectsField returns the first candidate key whose value is an array of
// JSON objects. Non-object elements are skipped.
func ObjectsField(obj Object, keys ...string) []Object {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]Object, 0, len(arr))
		for _, e := range arr {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
