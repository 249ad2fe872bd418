// Package view turns console state into HTML fragments. Every function is
// pure: the same input always yields the same markup.
package view

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"swagtest/internal/model"
	"swagtest/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var Static embed.FS

var tmpl = template.Must(template.New("view").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}).ParseFS(templateFS, "templates/*.html"))

type Card struct {
	Section string
	Method  string
	Path    string
	Summary string
}

type endpointsData struct {
	Title string
	Count int
	Cards []Card
}

type caseView struct {
	Name           string
	Description    string
	Endpoint       string
	Method         string
	ExpectedStatus string
	RequestBody    string
	Headers        string
	Result         *resultView
}

type resultView struct {
	Status       string
	StatusClass  string
	ActualStatus string
	ResponseTime string
	Error        string
	Body         string
	PanelID      string
}

type casesData struct {
	Heading string
	Cases   []caseView
}

type noticeData struct {
	Tone string
	Text string
}

// Cards builds the view models for an endpoint list, in order.
func Cards(eps []model.Endpoint) []Card {
	out := make([]Card, 0, len(eps))
	for _, ep := range eps {
		out = append(out, Card{
			Section: session.KeyOf(ep).SectionID(),
			Method:  strings.ToUpper(ep.Method),
			Path:    ep.Path,
			Summary: ep.Summary,
		})
	}
	return out
}

// Endpoints renders the list header and one card per endpoint. Each card
// carries an empty section the test cases are later rendered into.
func Endpoints(title string, eps []model.Endpoint) (template.HTML, error) {
	if title == "" {
		title = "Endpoints"
	}
	return render("endpoints", endpointsData{Title: title, Count: len(eps), Cards: Cards(eps)})
}

// TestCases renders the generated cases of one endpoint.
func TestCases(cases []model.TestCase) (template.HTML, error) {
	if len(cases) == 0 {
		return Notice("info", "No test cases generated for this endpoint.")
	}
	views := make([]caseView, 0, len(cases))
	for _, tc := range cases {
		views = append(views, newCaseView(tc))
	}
	return render("cases", casesData{
		Heading: fmt.Sprintf("Generated Test Cases (%d)", len(cases)),
		Cases:   views,
	})
}

// Results renders one endpoint's cases with their outcome. Cases missing
// from results show as not executed. section scopes the response panel ids.
func Results(section string, cases []model.TestCase, results map[string]model.TestResult) (template.HTML, error) {
	if len(cases) == 0 {
		return Notice("info", "No test cases to display results for.")
	}
	views := make([]caseView, 0, len(cases))
	for i, tc := range cases {
		v := newCaseView(tc)
		v.Result = &resultView{Status: "Not Executed"}
		if res, ok := results[tc.Name]; ok {
			v.Result = newResultView(res, fmt.Sprintf("%s-resp-%d", section, i))
		}
		views = append(views, v)
	}
	return render("results", casesData{
		Heading: fmt.Sprintf("Test Execution Results (%d test cases)", len(cases)),
		Cases:   views,
	})
}

// Notice renders a one-line status message. tone is one of loading, info,
// success, warning or error.
func Notice(tone, text string) (template.HTML, error) {
	return render("notice", noticeData{Tone: tone, Text: text})
}

func newCaseView(tc model.TestCase) caseView {
	v := caseView{
		Name:           orNA(tc.Name, "Unnamed Test Case"),
		Description:    orNA(tc.Description, "N/A"),
		Endpoint:       orNA(tc.Endpoint, "N/A"),
		Method:         orNA(tc.Method, "N/A"),
		ExpectedStatus: "N/A",
	}
	if tc.ExpectedStatusCode != 0 {
		v.ExpectedStatus = fmt.Sprint(tc.ExpectedStatusCode)
	}
	if !empty(tc.RequestBody) {
		v.RequestBody = Pretty(tc.RequestBody)
	}
	if len(tc.Headers) > 0 {
		v.Headers = Pretty(tc.Headers)
	}
	return v
}

func newResultView(res model.TestResult, panel string) *resultView {
	v := &resultView{
		Status:      res.Status,
		StatusClass: strings.ToLower(res.Status),
		Error:       res.Error,
		PanelID:     panel,
	}
	if res.ActualStatusCode != nil {
		v.ActualStatus = fmt.Sprint(*res.ActualStatusCode)
	}
	if res.ResponseTime != nil {
		v.ResponseTime = fmt.Sprintf("%.4fs", *res.ResponseTime)
	}
	if res.HasResponseBody() {
		v.Body = PrettyRaw(res.ActualResponseBody)
	}
	return v
}

// Pretty indents v as JSON with two spaces.
func Pretty(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// PrettyRaw indents a JSON document. A JSON string is shown unquoted and
// anything that is not JSON is returned verbatim.
func PrettyRaw(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if s, ok := v.(string); ok {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// empty mirrors the console's "nothing to show" rule: nil, "", and empty
// objects or arrays are omitted.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func orNA(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

type PageData struct {
	Session  string
	Location string
}

// Page renders the full console document for one page session.
func Page(data PageData) (template.HTML, error) {
	return render("page", data)
}
