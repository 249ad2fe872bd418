// Package generator derives test cases from endpoint descriptions. The
// cases are deterministic: the same endpoint always yields the same cases.
package generator

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"swagtest/internal/model"
)

const (
	AuthHeader = "Authorization"
	AuthToken  = "Bearer test-token"
)

type Generator struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate builds the cases of every endpoint. Test Case IDs run on across
// endpoints.
func (g *Generator) Generate(endpoints []model.Endpoint, defs model.Definitions) []model.TestCase {
	resolved := decodeDefs(defs)
	var out []model.TestCase
	for _, ep := range endpoints {
		cases := build(ep, resolved)
		for i := range cases {
			cases[i].ID = len(out) + i + 1
		}
		out = append(out, cases...)
		g.logger.Debug("generated test cases",
			zap.String("method", ep.Method), zap.String("path", ep.Path), zap.Int("cases", len(cases)))
	}
	g.logger.Info("generated test cases", zap.Int("endpoints", len(endpoints)), zap.Int("cases", len(out)))
	return out
}

func (g *Generator) ForEndpoint(ep model.Endpoint) []model.TestCase {
	return g.Generate([]model.Endpoint{ep}, nil)
}

// request is the concrete call a case makes, before it is flattened into
// a model.TestCase.
type request struct {
	path    map[string]string
	query   url.Values
	headers map[string]any
	body    any
}

func (r request) clone() request {
	c := request{
		path:    make(map[string]string, len(r.path)),
		query:   url.Values{},
		headers: make(map[string]any, len(r.headers)),
		body:    r.body,
	}
	for k, v := range r.path {
		c.path[k] = v
	}
	for k, v := range r.query {
		c.query[k] = append([]string{}, v...)
	}
	for k, v := range r.headers {
		c.headers[k] = v
	}
	if m, ok := r.body.(map[string]any); ok {
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		c.body = cp
	}
	return c
}

func build(ep model.Endpoint, defs map[string]map[string]any) []model.TestCase {
	method := strings.ToUpper(ep.Method)
	base := happyRequest(ep, defs)

	var cases []model.TestCase
	add := func(suffix, desc string, expected int, r request) {
		cases = append(cases, model.TestCase{
			Name:               fmt.Sprintf("%s %s - %s", method, ep.Path, suffix),
			Description:        desc,
			Endpoint:           concretePath(ep.Path, r),
			Method:             method,
			OperationID:        ep.OperationID,
			Summary:            ep.Summary,
			RequestBody:        r.body,
			ExpectedStatusCode: expected,
			Headers:            r.headers,
		})
	}

	add("happy path", "Valid request with all required inputs", SuccessStatus(ep), base)

	for _, p := range ep.Parameters {
		if !p.Required {
			continue
		}
		switch p.In {
		case model.ParamInQuery:
			r := base.clone()
			r.query.Del(p.Name)
			add("missing required query parameter "+p.Name,
				fmt.Sprintf("Request without the required query parameter %q", p.Name), 400, r)
		case model.ParamInHeader:
			r := base.clone()
			delete(r.headers, p.Name)
			add("missing required header "+p.Name,
				fmt.Sprintf("Request without the required header %q", p.Name), 400, r)
		}
	}

	schema := bodySchema(ep, defs)
	fields := required(schema)
	if _, ok := base.body.(map[string]any); ok {
		for _, name := range fields {
			r := base.clone()
			delete(r.body.(map[string]any), name)
			add("missing required body field "+name,
				fmt.Sprintf("Request body without the required field %q", name), 400, r)
		}
	}

	if suffix, desc, r, ok := invalidType(ep, schema, base); ok {
		add(suffix, desc, 400, r)
	}

	if ep.RequestBody != nil && ep.RequestBody.Required {
		r := base.clone()
		r.body = map[string]any{}
		add("empty request body", "Request with an empty body where one is required", 400, r)
	}

	if len(ep.Security) > 0 {
		r := base.clone()
		delete(r.headers, AuthHeader)
		add("unauthorized", "Request without credentials to a secured endpoint", 401, r)
	}
	return cases
}

func happyRequest(ep model.Endpoint, defs map[string]map[string]any) request {
	r := request{path: map[string]string{}, query: url.Values{}, headers: map[string]any{}}
	for _, p := range ep.Parameters {
		switch p.In {
		case model.ParamInPath:
			r.path[p.Name] = text(Sample(paramSchema(p)))
		case model.ParamInQuery:
			if p.Required {
				r.query.Set(p.Name, text(Sample(paramSchema(p))))
			}
		case model.ParamInHeader:
			if p.Required {
				r.headers[p.Name] = text(Sample(paramSchema(p)))
			}
		}
	}
	if len(ep.Security) > 0 {
		r.headers[AuthHeader] = AuthToken
	}
	if s := bodySchema(ep, defs); s != nil {
		r.body = Sample(s)
	}
	return r
}

// invalidType sends a value of the wrong type for the first required
// field that declares one: path, query and header parameters first, then
// body fields.
func invalidType(ep model.Endpoint, schema map[string]any, base request) (string, string, request, bool) {
	for _, p := range ep.Parameters {
		if !p.Required || !scalarNonString(p.Type) {
			continue
		}
		r := base.clone()
		switch p.In {
		case model.ParamInPath:
			r.path[p.Name] = "invalid"
		case model.ParamInQuery:
			r.query.Set(p.Name, "invalid")
		case model.ParamInHeader:
			r.headers[p.Name] = "invalid"
		default:
			continue
		}
		return "invalid type for " + p.Name,
			fmt.Sprintf("Parameter %q sent as a non-%s value", p.Name, p.Type), r, true
	}

	body, ok := base.body.(map[string]any)
	if !ok {
		return "", "", request{}, false
	}
	props, _ := schema["properties"].(map[string]any)
	for _, name := range required(schema) {
		prop, _ := props[name].(map[string]any)
		typ := typeOf(prop)
		if typ == "" {
			continue
		}
		if _, present := body[name]; !present {
			continue
		}
		r := base.clone()
		r.body.(map[string]any)[name] = wrongValue(typ)
		return "invalid type for " + name,
			fmt.Sprintf("Body field %q sent as a non-%s value", name, typ), r, true
	}
	return "", "", request{}, false
}

// SuccessStatus is the lowest declared 2xx response, or 200.
func SuccessStatus(ep model.Endpoint) int {
	var codes []int
	for k := range ep.Responses {
		if c, err := strconv.Atoi(k); err == nil && c >= 200 && c < 300 {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 {
		return 200
	}
	sort.Ints(codes)
	return codes[0]
}

func concretePath(tpl string, r request) string {
	path := tpl
	for name, v := range r.path {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(v))
	}
	if q := r.query.Encode(); q != "" {
		path += "?" + q
	}
	return path
}

func bodySchema(ep model.Endpoint, defs map[string]map[string]any) map[string]any {
	if ep.RequestBody == nil || len(ep.RequestBody.Schema) == 0 {
		return nil
	}
	s := map[string]any(ep.RequestBody.Schema)
	if ref := str(s["$ref"]); ref != "" {
		return defs[ref[strings.LastIndex(ref, "/")+1:]]
	}
	return s
}

func paramSchema(p model.Parameter) map[string]any {
	s := map[string]any{"type": p.Type}
	if p.Format != "" {
		s["format"] = p.Format
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Items != nil {
		s["items"] = map[string]any(p.Items)
	}
	return s
}

func scalarNonString(typ string) bool {
	return typ == "integer" || typ == "number" || typ == "boolean"
}

// text renders a sample for use in a URL or header.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			parts = append(parts, text(x))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func decodeDefs(defs model.Definitions) map[string]map[string]any {
	out := make(map[string]map[string]any, len(defs))
	for name, raw := range defs {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			out[name] = m
		}
	}
	return out
}
