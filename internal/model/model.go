package model

import (
	"encoding/json"
	"strings"
)

type ParamLocation string

const (
	ParamInPath     ParamLocation = "path"
	ParamInQuery    ParamLocation = "query"
	ParamInHeader   ParamLocation = "header"
	ParamInBody     ParamLocation = "body"
	ParamInFormData ParamLocation = "formData"
)

// Schema is a JSON schema body kept as decoded JSON. The console never
// interprets it; the collaborator service does.
type Schema map[string]any

type Parameter struct {
	Name        string        `json:"name"`
	In          ParamLocation `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Type        string        `json:"type,omitempty"`
	Format      string        `json:"format,omitempty"`
	Schema      Schema        `json:"schema,omitempty"`
	Enum        []any         `json:"enum,omitempty"`
	Items       Schema        `json:"items,omitempty"`
}

type RequestBody struct {
	Required bool   `json:"required"`
	Schema   Schema `json:"schema,omitempty"`
}

type Response struct {
	Description string `json:"description"`
	Schema      Schema `json:"schema,omitempty"`
}

// Endpoint is one (path, method) operation of the described API. Only Path
// and Method carry identity; the rest is passed back to the generator as is.
type Endpoint struct {
	FullPath    string              `json:"full_path,omitempty"`
	Path        string              `json:"path"`
	Method      string              `json:"method"`
	OperationID string              `json:"operation_id,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"request_body,omitempty"`
	Responses   map[string]Response `json:"responses,omitempty"`
	Security    []map[string]any    `json:"security,omitempty"`
}

// Same reports whether two endpoints share an identity. Method compares
// case-insensitively.
func (e Endpoint) Same(path, method string) bool {
	return e.Path == path && strings.EqualFold(e.Method, method)
}

// Definitions maps a schema component name to its body. Opaque on the
// console side.
type Definitions map[string]json.RawMessage

type Extraction struct {
	Title       string      `json:"title,omitempty"`
	Endpoints   []Endpoint  `json:"endpoints"`
	Definitions Definitions `json:"definitions"`
}

type TestCase struct {
	ID                 int            `json:"Test Case ID,omitempty"`
	Name               string         `json:"Test Case Name"`
	Description        string         `json:"Description"`
	Endpoint           string         `json:"Endpoint"`
	Method             string         `json:"Method"`
	OperationID        string         `json:"Operation ID,omitempty"`
	Summary            string         `json:"Summary,omitempty"`
	RequestBody        any            `json:"Request Body,omitempty"`
	ExpectedStatusCode int            `json:"Expected Status Code"`
	Headers            map[string]any `json:"Headers,omitempty"`

	// Filled in when a case is exported after execution.
	ActualStatusCode *int     `json:"Actual Status Code,omitempty"`
	Status           string   `json:"Status,omitempty"`
	Error            string   `json:"Error,omitempty"`
	ResponseTime     *float64 `json:"Response Time,omitempty"`
}

const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
	StatusError  = "ERROR"
)

type TestResult struct {
	Status             string          `json:"status"`
	Error              string          `json:"error,omitempty"`
	ActualStatusCode   *int            `json:"actual_status_code,omitempty"`
	ResponseTime       *float64        `json:"response_time,omitempty"`
	ActualResponseBody json.RawMessage `json:"actual_response_body,omitempty"`
}

// HasResponseBody is false for a missing or JSON null body.
func (r TestResult) HasResponseBody() bool {
	raw := strings.TrimSpace(string(r.ActualResponseBody))
	return raw != "" && raw != "null"
}

type Summary struct {
	TotalCases  int     `json:"total_cases"`
	PassedCases int     `json:"passed_cases"`
	FailedCases int     `json:"failed_cases"`
	TotalTime   float64 `json:"total_time"`
}
