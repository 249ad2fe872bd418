package ui

import (
	"fmt"

	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/model"
)

func (a *App) set(id string, r region) {
	a.mu.Lock()
	a.regions[id] = r
	a.mu.Unlock()
	a.refresh()
}

func (a *App) Message(id string, tone console.Tone, text string) {
	a.set(id, region{tone: tone, text: text})
}

// Endpoints starts a fresh list: every section drawn for the previous
// document is dropped.
func (a *App) Endpoints(title string, _ []model.Endpoint) {
	a.mu.Lock()
	a.title = title
	a.regions = map[string]region{}
	a.selected = 0
	a.mu.Unlock()
	a.refresh()
}

func (a *App) Controls(count int) {
	a.mu.Lock()
	if count == 0 {
		a.title = ""
		a.scr = screenEndpoints
	}
	delete(a.regions, console.RegionOverall)
	a.mu.Unlock()
	a.refresh()
}

func (a *App) TestCases(ep model.Endpoint, cases []model.TestCase) {
	a.set(console.SectionRegion(ep), region{cases: append([]model.TestCase{}, cases...)})
}

func (a *App) Results(ep model.Endpoint, cases []model.TestCase, results map[string]model.TestResult) {
	a.set(console.SectionRegion(ep), region{
		cases:    append([]model.TestCase{}, cases...),
		results:  results,
		executed: true,
	})
}

func (a *App) Summary(s model.Summary) {
	a.set(console.RegionOverall, region{text: renderSummary(s), raw: true})
}

func (a *App) Busy(s console.Scope) {
	a.setBusy(s, true)
}

func (a *App) Idle(s console.Scope) {
	a.setBusy(s, false)
}

func (a *App) setBusy(s console.Scope, busy bool) {
	a.mu.Lock()
	switch s.Action {
	case console.ActionGenerate, console.ActionExecute:
		a.busy[console.SectionRegion(s.Endpoint)] = busy
	default:
		a.busy[string(s.Action)] = busy
	}
	a.mu.Unlock()
	a.refresh()
}

func (a *App) Alert(text string) {
	a.mu.Lock()
	a.status = colorYellow + text + colorReset
	a.mu.Unlock()
	a.refresh()
}

func (a *App) Save(filename string, data []byte) error {
	path, err := saveFile(a.saveDir, filename, data)
	if err != nil {
		return err
	}
	a.logger.Info("saved test cases", zap.String("path", path))
	a.mu.Lock()
	a.status = fmt.Sprintf("%ssaved %s%s", colorGreen, path, colorReset)
	a.mu.Unlock()
	a.refresh()
	return nil
}
