package swagger

import (
	"encoding/json"

	"swagtest/internal/model"
)

// resolver inlines "#/definitions/..." references. A definition that refers
// back to itself is cut off at the second visit and left as its $ref.
type resolver struct {
	defs map[string]map[string]any
}

func newResolver(defs model.Definitions) *resolver {
	r := &resolver{defs: map[string]map[string]any{}}
	for name, raw := range defs {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			r.defs[name] = m
		}
	}
	return r
}

func (r *resolver) resolve(s map[string]any) model.Schema {
	if s == nil {
		return nil
	}
	out, _ := r.walk(s, map[string]bool{}).(map[string]any)
	if len(out) == 0 {
		return nil
	}
	return out
}

// walk copies v, so definitions shared by several endpoints are never
// modified in place.
func (r *resolver) walk(v any, seen map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			name := refName(ref)
			def, found := r.defs[name]
			if !found {
				return map[string]any{}
			}
			if seen[name] {
				return map[string]any{"$ref": ref}
			}
			seen[name] = true
			defer delete(seen, name)
			return r.walk(def, seen)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = r.walk(val, seen)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.walk(val, seen)
		}
		return out
	default:
		return v
	}
}
