package view

import (
	"fmt"
	"html/template"
	"math"

	"swagtest/internal/model"
)

const (
	chartRadius = 90.0
	chartCenter = 100.0
)

type Slice struct {
	Label   string
	Count   int
	Percent float64
	Class   string
	// Path is the SVG path of the wedge; Full marks a slice that covers the
	// whole disc and is drawn as a circle instead.
	Path string
	Full bool
}

// Tooltip is the hover text of the slice, as in "Passed: 4 (80.00%)".
func (s Slice) Tooltip() string {
	return fmt.Sprintf("%s: %d (%.2f%%)", s.Label, s.Count, s.Percent)
}

type summaryData struct {
	Total     int
	Passed    int
	Failed    int
	TotalTime string
	Slices    []Slice
	Radius    float64
	Center    float64
}

// Slices splits passed vs failed into pie wedges. Percentages are relative
// to passed+failed; empty slices are dropped.
func Slices(passed, failed int) []Slice {
	total := passed + failed
	if total <= 0 {
		return nil
	}
	parts := []Slice{
		{Label: "Passed", Count: passed, Class: "passed"},
		{Label: "Failed", Count: failed, Class: "failed"},
	}

	var out []Slice
	start := 0.0
	for _, s := range parts {
		if s.Count <= 0 {
			continue
		}
		frac := float64(s.Count) / float64(total)
		s.Percent = frac * 100
		if s.Count == total {
			s.Full = true
		} else {
			s.Path = wedge(start, start+frac)
		}
		start += frac
		out = append(out, s)
	}
	return out
}

// wedge draws the arc between two fractions of a turn, clockwise from
// twelve o'clock.
func wedge(from, to float64) string {
	x0, y0 := point(from)
	x1, y1 := point(to)
	large := 0
	if to-from > 0.5 {
		large = 1
	}
	return fmt.Sprintf("M %.2f %.2f L %.2f %.2f A %.2f %.2f 0 %d 1 %.2f %.2f Z",
		chartCenter, chartCenter, x0, y0, chartRadius, chartRadius, large, x1, y1)
}

func point(frac float64) (float64, float64) {
	a := 2*math.Pi*frac - math.Pi/2
	return chartCenter + chartRadius*math.Cos(a), chartCenter + chartRadius*math.Sin(a)
}

// FormatTime prints seconds with four decimals, or N/A when unknown.
func FormatTime(seconds float64) string {
	if seconds == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.4fs", seconds)
}

// Summary renders the aggregate panel of a bulk execution.
func Summary(s model.Summary) (template.HTML, error) {
	return render("summary", summaryData{
		Total:     s.TotalCases,
		Passed:    s.PassedCases,
		Failed:    s.FailedCases,
		TotalTime: FormatTime(s.TotalTime),
		Slices:    Slices(s.PassedCases, s.FailedCases),
		Radius:    chartRadius,
		Center:    chartCenter,
	})
}
