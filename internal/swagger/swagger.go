// Package swagger reads Swagger 2.0 documents into the endpoint model the
// console works with.
package swagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/tidwall/gjson"

	"swagtest/internal/model"
)

const defaultTimeout = 10 * time.Second

var ErrUnsupportedVersion = errors.New("only Swagger 2.0 definitions are currently supported")

// Methods are the operations extracted from each path item, in the order
// they are looked up when the document gives none.
var Methods = []string{"get", "post", "put", "delete", "patch"}

// Document is a parsed Swagger 2.0 file plus the raw bytes it came from.
// The raw form keeps key order, which decoding into maps loses.
type Document struct {
	*openapi2.T
	raw []byte
}

// Read fetches location over http(s) or from the local filesystem.
func Read(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	loc := strings.TrimSpace(location)
	lower := strings.ToLower(loc)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return os.ReadFile(strings.TrimPrefix(loc, "file://"))
	}

	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", loc, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Parse decodes a Swagger 2.0 JSON document. Anything declaring another
// version, or none, is rejected.
func Parse(raw []byte) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("swagger document is not valid JSON")
	}
	if v := gjson.GetBytes(raw, "swagger"); v.String() != "2.0" {
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedVersion, v.String())
	}
	var doc openapi2.T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode swagger document: %w", err)
	}
	return &Document{T: &doc, raw: raw}, nil
}

func Load(ctx context.Context, client *http.Client, location string) (*Document, error) {
	raw, err := Read(ctx, client, location)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Definitions returns the document's schema definitions verbatim.
func (d *Document) Definitions() model.Definitions {
	defs := model.Definitions{}
	gjson.GetBytes(d.raw, "definitions").ForEach(func(k, v gjson.Result) bool {
		defs[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	return defs
}

// Extraction lists every supported operation in document order.
func (d *Document) Extraction() model.Extraction {
	defs := d.Definitions()
	r := newResolver(defs)
	sharedParams := roundTrip(d.Parameters)

	var eps []model.Endpoint
	for _, path := range d.pathOrder() {
		item := d.Paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range d.methodOrder(path) {
			op := ops[strings.ToUpper(method)]
			if op == nil {
				continue
			}
			params := make([]map[string]any, 0, len(item.Parameters)+len(op.Parameters))
			for _, p := range append(append(openapi2.Parameters{}, item.Parameters...), op.Parameters...) {
				if m := lookupParam(roundTrip(p), sharedParams); m != nil {
					params = append(params, m)
				}
			}
			eps = append(eps, d.endpoint(path, method, op, params, r))
		}
	}
	return model.Extraction{Endpoints: eps, Definitions: defs}
}

func (d *Document) endpoint(path, method string, op *openapi2.Operation, params []map[string]any, r *resolver) model.Endpoint {
	opID := strings.TrimSpace(op.OperationID)
	if opID == "" {
		opID = method + "_" + strings.ReplaceAll(path, "/", "_")
	}
	ep := model.Endpoint{
		FullPath:    d.BasePath + path,
		Path:        path,
		Method:      strings.ToUpper(method),
		OperationID: opID,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Responses:   map[string]model.Response{},
	}

	var form []map[string]any
	for _, p := range params {
		mp := parameter(p)
		ep.Parameters = append(ep.Parameters, mp)
		switch mp.In {
		case model.ParamInBody:
			if ep.RequestBody == nil {
				ep.RequestBody = &model.RequestBody{Required: mp.Required, Schema: r.resolve(mp.Schema)}
			}
		case model.ParamInFormData:
			form = append(form, p)
		}
	}
	if ep.RequestBody == nil && len(form) > 0 {
		ep.RequestBody = &model.RequestBody{Required: true, Schema: formSchema(form)}
	}

	for code, resp := range op.Responses {
		m := object(roundTrip(resp))
		out := model.Response{Description: str(m["description"])}
		if s, ok := m["schema"].(map[string]any); ok {
			out.Schema = r.resolve(s)
		}
		ep.Responses[code] = out
	}

	if op.Security != nil {
		if sec, ok := roundTrip(op.Security).([]any); ok {
			for _, s := range sec {
				if m, ok := s.(map[string]any); ok {
					ep.Security = append(ep.Security, m)
				}
			}
		}
	}
	return ep
}

func (d *Document) pathOrder() []string {
	var out []string
	gjson.GetBytes(d.raw, "paths").ForEach(func(k, _ gjson.Result) bool {
		out = append(out, k.String())
		return true
	})
	return out
}

func (d *Document) methodOrder(path string) []string {
	var out []string
	gjson.GetBytes(d.raw, "paths."+gjson.Escape(path)).ForEach(func(k, _ gjson.Result) bool {
		m := strings.ToLower(k.String())
		for _, want := range Methods {
			if m == want {
				out = append(out, m)
			}
		}
		return true
	})
	return out
}

// formSchema folds formData parameters into one object schema. File
// parameters become binary strings.
func formSchema(params []map[string]any) model.Schema {
	props := map[string]any{}
	required := []any{}
	for _, p := range params {
		name := str(p["name"])
		typ := str(p["type"])
		if typ == "" {
			typ = "string"
		}
		if typ == "file" {
			props[name] = map[string]any{"type": "string", "format": "binary", "description": str(p["description"])}
		} else {
			prop := map[string]any{"type": typ, "description": str(p["description"])}
			if enum, ok := p["enum"]; ok {
				prop["enum"] = enum
			}
			if f := str(p["format"]); f != "" {
				prop["format"] = f
			}
			props[name] = prop
		}
		if req, _ := p["required"].(bool); req {
			required = append(required, name)
		}
	}
	return model.Schema{"type": "object", "properties": props, "required": required}
}

func parameter(p map[string]any) model.Parameter {
	mp := model.Parameter{
		Name:        str(p["name"]),
		In:          model.ParamLocation(str(p["in"])),
		Description: str(p["description"]),
		Type:        str(p["type"]),
		Format:      str(p["format"]),
	}
	mp.Required, _ = p["required"].(bool)
	if s, ok := p["schema"].(map[string]any); ok {
		mp.Schema = s
	}
	if e, ok := p["enum"].([]any); ok {
		mp.Enum = e
	}
	if it, ok := p["items"].(map[string]any); ok {
		mp.Items = it
	}
	return mp
}

// lookupParam follows a "#/parameters/name" reference.
func lookupParam(v any, shared any) map[string]any {
	m := object(v)
	if m == nil {
		return nil
	}
	ref := str(m["$ref"])
	if ref == "" {
		return m
	}
	return object(object(shared)[refName(ref)])
}

// roundTrip re-decodes v as generic JSON so that fields are read the same
// way whichever typed form the parser used for them.
func roundTrip(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func refName(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}
