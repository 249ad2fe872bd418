package ui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"swagtest/internal/console"
	"swagtest/internal/model"
	"swagtest/internal/view"
)

// ansi colors
const (
	colorDim     = "\033[90m"
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
)

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

// region is what was last drawn into one display region.
type region struct {
	tone     console.Tone
	text     string
	raw      bool
	cases    []model.TestCase
	results  map[string]model.TestResult
	executed bool
}

func (r region) isMessage() bool {
	return r.text != "" && !r.raw
}

func toneColor(t console.Tone) string {
	switch t {
	case console.ToneError:
		return colorRed
	case console.ToneWarning:
		return colorYellow
	case console.ToneSuccess:
		return colorGreen
	case console.ToneLoading:
		return colorDim
	default:
		return colorCyan
	}
}

func renderMessage(t console.Tone, text string) string {
	return toneColor(t) + text + colorReset + "\n"
}

// renderRegion draws a section the way the browser console would: a
// message, the generated cases, or the cases with their results.
func renderRegion(r region, expanded bool) string {
	switch {
	case r.raw:
		return r.text
	case r.isMessage():
		return renderMessage(r.tone, r.text)
	case r.executed:
		return renderResults(r.cases, r.results, expanded)
	default:
		return renderCases(r.cases)
	}
}

func renderCases(cases []model.TestCase) string {
	if len(cases) == 0 {
		return renderMessage(console.ToneInfo, "No test cases generated for this endpoint.")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generated Test Cases (%d)\n", len(cases))
	for _, tc := range cases {
		sb.WriteString("\n")
		writeCase(&sb, tc)
	}
	return sb.String()
}

func renderResults(cases []model.TestCase, results map[string]model.TestResult, expanded bool) string {
	if len(cases) == 0 {
		return renderMessage(console.ToneInfo, "No test cases to display results for.")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Test Execution Results (%d test cases)\n", len(cases))
	for _, tc := range cases {
		sb.WriteString("\n")
		res, ok := results[tc.Name]
		if !ok {
			fmt.Fprintf(&sb, "%s[Not Executed]%s\n", colorDim, colorReset)
			writeCase(&sb, tc)
			continue
		}
		fmt.Fprintf(&sb, "%s\n", colorizeResult(res.Status))
		writeCase(&sb, tc)
		if res.ActualStatusCode != nil {
			fmt.Fprintf(&sb, "Actual Status: %s\n", colorizeStatus(strconv.Itoa(*res.ActualStatusCode)))
		}
		if res.ResponseTime != nil {
			fmt.Fprintf(&sb, "Response Time: %.4fs\n", *res.ResponseTime)
		}
		if res.Error != "" {
			fmt.Fprintf(&sb, "%sError: %s%s\n", colorRed, res.Error, colorReset)
		}
		if res.HasResponseBody() {
			if expanded {
				fmt.Fprintf(&sb, "Actual Response:\n%s\n", view.PrettyRaw(res.ActualResponseBody))
			} else {
				fmt.Fprintf(&sb, "%s> actual response hidden (r to show)%s\n", colorDim, colorReset)
			}
		}
	}
	return sb.String()
}

func writeCase(sb *strings.Builder, tc model.TestCase) {
	fmt.Fprintf(sb, "%s\n", firstNonEmpty(tc.Name, "Unnamed Test Case"))
	fmt.Fprintf(sb, "  Description: %s\n", firstNonEmpty(tc.Description, "N/A"))
	fmt.Fprintf(sb, "  Endpoint: %s %s\n", colorizeMethod(firstNonEmpty(tc.Method, "N/A")), firstNonEmpty(tc.Endpoint, "N/A"))
	expected := "N/A"
	if tc.ExpectedStatusCode != 0 {
		expected = strconv.Itoa(tc.ExpectedStatusCode)
	}
	fmt.Fprintf(sb, "  Expected Status: %s\n", expected)
	if tc.RequestBody != nil && !emptyJSON(tc.RequestBody) {
		fmt.Fprintf(sb, "  Request Body:\n%s\n", indent(view.Pretty(tc.RequestBody), "    "))
	}
	if len(tc.Headers) > 0 {
		fmt.Fprintf(sb, "  Headers:\n%s\n", indent(view.Pretty(tc.Headers), "    "))
	}
}

func renderSummary(s model.Summary) string {
	var sb strings.Builder
	sb.WriteString("Overall Test Execution Summary\n")
	fmt.Fprintf(&sb, "Total Cases: %d   Passed: %s%d%s   Failed: %s%d%s   Total Time: %s\n",
		s.TotalCases, colorGreen, s.PassedCases, colorReset, colorRed, s.FailedCases, colorReset,
		view.FormatTime(s.TotalTime))
	for _, sl := range view.Slices(s.PassedCases, s.FailedCases) {
		c := colorGreen
		if sl.Class == "failed" {
			c = colorRed
		}
		bar := strings.Repeat("#", int(sl.Percent/5+0.5))
		fmt.Fprintf(&sb, "%s%-20s%s %s\n", c, bar, colorReset, sl.Tooltip())
	}
	return sb.String()
}

// badge summarises a section for the endpoint list.
func badge(r region, busy bool) string {
	switch {
	case busy:
		return colorDim + "[working]" + colorReset
	case r.isMessage():
		if r.tone == console.ToneError {
			return colorRed + "[error]" + colorReset
		}
		return ""
	case r.executed:
		passed := 0
		for _, tc := range r.cases {
			if res, ok := r.results[tc.Name]; ok && res.Status == model.StatusPassed {
				passed++
			}
		}
		c := colorGreen
		if passed < len(r.cases) {
			c = colorRed
		}
		return fmt.Sprintf("%s[%d/%d passed]%s", c, passed, len(r.cases), colorReset)
	case r.cases != nil:
		return fmt.Sprintf("%s[%d cases]%s", colorCyan, len(r.cases), colorReset)
	}
	return ""
}

func emptyJSON(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func colorizeMethod(method string) string {
	var color string
	switch strings.ToUpper(method) {
	case "GET":
		color = colorBlue
	case "POST":
		color = colorGreen
	case "PUT":
		color = colorYellow
	case "DELETE":
		color = colorRed
	case "PATCH":
		color = colorCyan
	case "HEAD":
		color = colorMagenta
	default:
		color = colorReset
	}
	return color + padRight(strings.ToUpper(method), 6) + colorReset
}

func colorizeStatus(status string) string {
	parts := strings.Fields(status)
	if len(parts) == 0 {
		return status
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return status
	}
	var color string
	switch {
	case code >= 200 && code < 300:
		color = colorGreen
	case code >= 400 && code < 500:
		color = colorYellow
	case code >= 500:
		color = colorRed
	default:
		color = colorReset
	}
	return color + status + colorReset
}

func colorizeResult(status string) string {
	switch status {
	case model.StatusPassed:
		return colorGreen + "[" + status + "]" + colorReset
	case model.StatusFailed:
		return colorRed + "[" + status + "]" + colorReset
	default:
		return colorYellow + "[" + status + "]" + colorReset
	}
}

func highlightPathParams(path string) string {
	return pathParamRe.ReplaceAllString(path, colorCyan+"{$1}"+colorReset)
}

// stripANSI drops color escapes, for width math and tests.
func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

var ansiRe = regexp.MustCompile("\033\\[[0-9;]*m")
