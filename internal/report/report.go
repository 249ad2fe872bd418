// Package report is the presenter of the headless runner: progress goes to
// a writer line by line, results are kept and printed as tables at the end.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/model"
	"swagtest/internal/session"
	"swagtest/internal/view"
)

var (
	passColor  = color.New(color.FgHiGreen).SprintFunc()
	failColor  = color.New(color.FgHiRed).SprintFunc()
	errorColor = color.New(color.FgHiYellow).SprintFunc()
	infoColor  = color.New(color.FgHiBlue).SprintFunc()
	dimColor   = color.New(color.FgHiBlack).SprintFunc()
)

type outcome struct {
	endpoint model.Endpoint
	cases    []model.TestCase
	results  map[string]model.TestResult
}

type Presenter struct {
	mu     sync.Mutex
	out    io.Writer
	dir    string
	logger *zap.Logger

	labels   map[string]string
	order    []session.Key
	outcomes map[session.Key]outcome
	summary  *model.Summary
}

var _ console.Presenter = (*Presenter)(nil)

// New returns a presenter writing to out. Saved files go to dir; an empty
// dir refuses to save.
func New(out io.Writer, dir string, logger *zap.Logger) *Presenter {
	return &Presenter{
		out:      out,
		dir:      dir,
		logger:   logger,
		labels:   map[string]string{},
		outcomes: map[session.Key]outcome{},
	}
}

func (p *Presenter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Presenter) Message(region string, tone console.Tone, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if label, ok := p.labels[region]; ok {
		text = label + ": " + text
	}
	switch tone {
	case console.ToneError:
		p.printf("%s", failColor(text))
	case console.ToneWarning:
		p.printf("%s", errorColor(text))
	case console.ToneSuccess:
		p.printf("%s", passColor(text))
	case console.ToneLoading:
		p.printf("%s", dimColor(text))
	default:
		p.printf("%s", text)
	}
}

func (p *Presenter) Endpoints(title string, eps []model.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.labels = make(map[string]string, len(eps))
	p.order = p.order[:0]
	p.outcomes = map[session.Key]outcome{}
	p.summary = nil
	for _, ep := range eps {
		k := session.KeyOf(ep)
		p.labels[k.SectionID()] = k.Method + " " + k.Path
		p.order = append(p.order, k)
	}
	p.printf("%s (%d endpoints extracted)", infoColor(title), len(eps))
}

func (p *Presenter) Controls(int) {}

func (p *Presenter) TestCases(ep model.Endpoint, cases []model.TestCase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := session.KeyOf(ep)
	p.printf("%s %s: %d test cases", k.Method, k.Path, len(cases))
}

func (p *Presenter) Results(ep model.Endpoint, cases []model.TestCase, results map[string]model.TestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes[session.KeyOf(ep)] = outcome{endpoint: ep, cases: cases, results: results}
}

func (p *Presenter) Summary(s model.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary = &s
}

func (p *Presenter) Busy(console.Scope) {}
func (p *Presenter) Idle(console.Scope) {}

func (p *Presenter) Alert(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s", errorColor(text))
}

func (p *Presenter) Save(filename string, data []byte) error {
	if p.dir == "" {
		return fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(p.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	p.logger.Info("saved test cases", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// Failed reports whether any executed case did not pass.
func (p *Presenter) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.summary != nil && p.summary.FailedCases > 0 {
		return true
	}
	for _, o := range p.outcomes {
		for _, res := range o.results {
			if res.Status != model.StatusPassed {
				return true
			}
		}
	}
	return false
}

// Render prints one table per executed endpoint, then the summary.
func (p *Presenter) Render(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rest []session.Key
	for k := range p.outcomes {
		if _, ok := p.labels[k.SectionID()]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].String() < rest[j].String() })
	keys := append(append([]session.Key(nil), p.order...), rest...)

	for _, k := range keys {
		o, ok := p.outcomes[k]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s %s\n", infoColor(k.Method), k.Path)
		if len(o.cases) == 0 {
			fmt.Fprintln(w, dimColor("No test cases to display results for."))
			continue
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Test Case", "Endpoint", "Expected", "Actual", "Status", "Time", "Error"})
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, tc := range o.cases {
			table.Append(row(tc, o.results))
		}
		table.Render()
	}

	if p.summary != nil {
		s := p.summary
		fmt.Fprintf(w, "\nTotal Cases: %d  Passed: %s  Failed: %s  Total Time: %s\n",
			s.TotalCases, passColor(s.PassedCases), failColor(s.FailedCases), view.FormatTime(s.TotalTime))
		for _, sl := range view.Slices(s.PassedCases, s.FailedCases) {
			fmt.Fprintf(w, "  %s\n", sl.Tooltip())
		}
	}
}

func row(tc model.TestCase, results map[string]model.TestResult) []string {
	expected := ""
	if tc.ExpectedStatusCode != 0 {
		expected = fmt.Sprint(tc.ExpectedStatusCode)
	}
	res, ok := results[tc.Name]
	if !ok {
		return []string{tc.Name, tc.Endpoint, expected, "", dimColor("Not Executed"), "", ""}
	}

	actual, elapsed := "", ""
	if res.ActualStatusCode != nil {
		actual = fmt.Sprint(*res.ActualStatusCode)
	}
	if res.ResponseTime != nil {
		elapsed = fmt.Sprintf("%.4fs", *res.ResponseTime)
	}
	return []string{tc.Name, tc.Endpoint, expected, actual, paint(res.Status), elapsed, res.Error}
}

func paint(status string) string {
	switch status {
	case model.StatusPassed:
		return passColor(status)
	case model.StatusFailed:
		return failColor(status)
	default:
		return errorColor(status)
	}
}
