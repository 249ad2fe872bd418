package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/model"
	"swagtest/internal/view"
)

// DOM ids of the fixed page controls.
const (
	idSearch     = "searchBox"
	idBulk       = "bulkActions"
	idGenerate   = "generateAllBtn"
	idExecute    = "executeAllBtn"
	idDownload   = "downloadAllBtn"
	labelGenOne  = "Generate Tests"
	labelExecOne = "Execute Tests"

	selGenOne  = `button[data-op="generate"]`
	selExecOne = `button[data-op="execute"]`
)

// stream is the presenter of one request: every change is written to the
// response as one JSON line and flushed.
type stream struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	enc    *json.Encoder
	logger *zap.Logger
}

var _ console.Presenter = (*stream)(nil)

func newStream(w http.ResponseWriter, logger *zap.Logger) *stream {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	return &stream{w: w, enc: json.NewEncoder(w), logger: logger}
}

func (s *stream) send(patches ...view.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range patches {
		if err := s.enc.Encode(p); err != nil {
			// The page went away; the operation still completes.
			s.logger.Debug("failed to write patch", zap.String("op", string(p.Op)), zap.Error(err))
			return
		}
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *stream) replace(target string, html template.HTML, err error) {
	if err != nil {
		s.logger.Error("failed to render", zap.String("target", target), zap.Error(err))
		return
	}
	s.send(view.Replace(target, string(html)))
}

func (s *stream) Message(region string, tone console.Tone, text string) {
	html, err := view.Notice(string(tone), text)
	s.replace(region, html, err)
}

func (s *stream) Endpoints(title string, eps []model.Endpoint) {
	html, err := view.Endpoints(title, eps)
	s.replace(console.RegionMain, html, err)
}

func (s *stream) Controls(count int) {
	if count == 0 {
		s.send(
			view.Patch{Op: view.OpHide, Target: idSearch},
			view.Patch{Op: view.OpHide, Target: idBulk},
			view.Replace(console.RegionOverall, ""),
		)
		return
	}
	s.send(
		view.Patch{Op: view.OpShow, Target: idSearch},
		view.Patch{Op: view.OpShow, Target: idBulk},
		view.Patch{Op: view.OpText, Target: idGenerate, Text: fmt.Sprintf("Generate Tests for All %d Endpoints", count)},
		view.Patch{Op: view.OpText, Target: idExecute, Text: fmt.Sprintf("Execute Tests for All %d Endpoints", count)},
		view.Replace(console.RegionOverall, ""),
	)
}

func (s *stream) TestCases(ep model.Endpoint, cases []model.TestCase) {
	html, err := view.TestCases(cases)
	s.replace(console.SectionRegion(ep), html, err)
}

func (s *stream) Results(ep model.Endpoint, cases []model.TestCase, results map[string]model.TestResult) {
	section := console.SectionRegion(ep)
	html, err := view.Results(section, cases, results)
	s.replace(section, html, err)
}

func (s *stream) Summary(sum model.Summary) {
	html, err := view.Summary(sum)
	s.replace(console.RegionOverall, html, err)
}

func (s *stream) Busy(scope console.Scope) {
	s.send(toggles(scope, view.OpDisable, true)...)
}

func (s *stream) Idle(scope console.Scope) {
	s.send(toggles(scope, view.OpEnable, false)...)
}

func (s *stream) Alert(text string) {
	s.send(view.Patch{Op: view.OpAlert, Text: text})
}

func (s *stream) Save(filename string, data []byte) error {
	s.send(view.Download(filename, data))
	return nil
}

// toggles lists the patches that disable or re-enable the controls of
// scope. Single-endpoint buttons also show progress in their label.
func toggles(scope console.Scope, op view.Op, busy bool) []view.Patch {
	section := console.SectionRegion(scope.Endpoint)
	switch scope.Action {
	case console.ActionGenerate:
		label := labelGenOne
		if busy {
			label = "Generating..."
		}
		return []view.Patch{
			{Op: op, Target: "gen-" + section},
			{Op: view.OpText, Target: "gen-" + section, Text: label},
		}
	case console.ActionExecute:
		label := labelExecOne
		if busy {
			label = "Executing..."
		}
		return []view.Patch{
			{Op: op, Target: "exec-" + section},
			{Op: view.OpText, Target: "exec-" + section, Text: label},
		}
	case console.ActionBulk:
		return []view.Patch{
			{Op: op, Target: idGenerate},
			{Op: op, Target: idExecute},
			{Op: op, Target: idDownload},
			{Op: op, Target: selGenOne, All: true},
			{Op: op, Target: selExecOne, All: true},
		}
	default:
		return []view.Patch{{Op: op, Target: idDownload}}
	}
}
