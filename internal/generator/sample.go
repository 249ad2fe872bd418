package generator

import (
	"sort"
	"strings"
)

const maxDepth = 6

// Sample builds a deterministic value that satisfies schema: enum first,
// then example, then default, then something of the declared type.
func Sample(schema map[string]any) any {
	return sample(schema, 0)
}

func sample(schema map[string]any, depth int) any {
	if schema == nil {
		return nil
	}
	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	if ex, ok := schema["example"]; ok {
		return ex
	}
	if def, ok := schema["default"]; ok {
		return def
	}

	switch typeOf(schema) {
	case "string":
		return sampleString(str(schema["format"]))
	case "integer":
		return 1
	case "number":
		return 1.5
	case "boolean":
		return true
	case "array":
		if depth >= maxDepth {
			return []any{}
		}
		items, _ := schema["items"].(map[string]any)
		if v := sample(items, depth+1); v != nil {
			return []any{v}
		}
		return []any{}
	case "object":
		out := map[string]any{}
		if depth >= maxDepth {
			return out
		}
		props, _ := schema["properties"].(map[string]any)
		for _, name := range sortedKeys(props) {
			p, _ := props[name].(map[string]any)
			if _, isRef := p["$ref"]; isRef {
				continue
			}
			out[name] = sample(p, depth+1)
		}
		return out
	}
	return nil
}

func sampleString(format string) string {
	switch format {
	case "date":
		return "2024-01-01"
	case "date-time":
		return "2024-01-01T00:00:00Z"
	case "email":
		return "user@example.com"
	case "uuid":
		return "3fa85f64-5717-4562-b3fc-2c963f66afa6"
	case "uri", "url":
		return "https://example.com"
	case "binary":
		return "/path/to/cat.jpg"
	case "byte":
		return "c2FtcGxl"
	case "password":
		return "P@ssw0rd"
	}
	return "sample"
}

// typeOf infers an object when only properties are given.
func typeOf(schema map[string]any) string {
	if t := str(schema["type"]); t != "" {
		return t
	}
	if _, ok := schema["properties"]; ok {
		return "object"
	}
	if _, ok := schema["items"]; ok {
		return "array"
	}
	return ""
}

// wrongValue is a value of a different JSON type than typ.
func wrongValue(typ string) any {
	switch typ {
	case "string":
		return 12345
	case "array":
		return "not-an-array"
	case "object":
		return "not-an-object"
	case "":
		return nil
	}
	return "invalid"
}

func required(schema map[string]any) []string {
	list, _ := schema["required"].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
