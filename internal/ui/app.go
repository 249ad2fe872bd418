// Package ui is the terminal console: the same generate/execute lifecycle as
// the browser console, drawn with gocui.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/model"
	"swagtest/internal/session"
)

type screen int

const (
	screenEndpoints screen = iota
	screenSection
)

type App struct {
	g      *gocui.Gui
	ctrl   *console.Controller
	logger *zap.Logger

	location string
	saveDir  string

	mu sync.Mutex

	scr      screen
	title    string
	filter   string
	selected int
	active   model.Endpoint
	expanded bool

	regions map[string]region
	busy    map[string]bool
	status  string
}

var _ console.Presenter = (*App)(nil)

// NewApp builds a terminal console over svc. Downloads are written to
// saveDir.
func NewApp(svc console.Service, location, saveDir string, logger *zap.Logger) *App {
	a := &App{
		logger:   logger,
		location: strings.TrimSpace(location),
		saveDir:  saveDir,
		regions:  map[string]region{},
		busy:     map[string]bool{},
	}
	a.ctrl = console.New(svc, session.New(), a, logger)
	return a
}

func (a *App) Controller() *console.Controller {
	return a.ctrl
}

// Reload extracts the document again, dropping every generated case.
func (a *App) Reload(ctx context.Context) error {
	return a.ctrl.Extract(ctx, a.location)
}

func (a *App) Run(ctx context.Context) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()
	a.g = g

	g.BgColor = gocui.ColorBlack
	g.FgColor = gocui.ColorWhite
	g.InputEsc = true
	g.SetManagerFunc(a.layout)

	if err := a.bindKeys(); err != nil {
		return err
	}

	go a.do(ctx, "extract", a.Reload)
	go func() {
		<-ctx.Done()
		g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	}()

	if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// do runs op off the UI loop. Failures were already drawn by the
// controller, so they are only logged here.
func (a *App) do(ctx context.Context, name string, op func(context.Context) error) {
	if err := op(ctx); err != nil {
		a.logger.Debug("operation failed", zap.String("op", name), zap.Error(err))
	}
}

// refresh asks the UI loop to redraw from the current state.
func (a *App) refresh() {
	if a.g == nil {
		return
	}
	a.g.Update(func(*gocui.Gui) error { return nil })
}

func (a *App) layout(g *gocui.Gui) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	maxX, maxY := g.Size()

	if v, err := g.SetView("header", 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
	}
	a.renderHeader()

	if v, err := g.SetView("overall", 0, maxY-8, maxX-1, maxY-2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Overall"
		v.Wrap = true
	}
	a.renderOverall()

	if v, err := g.SetView("footer", 0, maxY-2, maxX-1, maxY); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
	}
	a.renderFooter()

	switch a.scr {
	case screenSection:
		return a.layoutSection(maxX, maxY)
	default:
		return a.layoutEndpoints(maxX, maxY)
	}
}

func (a *App) layoutEndpoints(maxX, maxY int) error {
	a.clearMainViews("filter", "endpoints")

	if v, err := a.g.SetView("filter", 0, 2, maxX-1, 4); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Filter"
	}
	if v, err := a.g.SetView("endpoints", 0, 4, maxX-1, maxY-8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
	}
	a.renderFilter()
	a.renderEndpoints()
	_, err := a.g.SetCurrentView("endpoints")
	return err
}

func (a *App) layoutSection(maxX, maxY int) error {
	a.clearMainViews("section")

	if v, err := a.g.SetView("section", 0, 2, maxX-1, maxY-8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
	}
	a.renderSection()
	_, err := a.g.SetCurrentView("section")
	return err
}

func (a *App) clearMainViews(keep ...string) {
	keepSet := map[string]bool{}
	for _, k := range keep {
		keepSet[k] = true
	}
	for _, n := range []string{"filter", "endpoints", "section"} {
		if keepSet[n] {
			continue
		}
		if _, err := a.g.View(n); err == nil {
			_ = a.g.DeleteView(n)
		}
	}
}

func (a *App) bindKeys() error {
	g := a.g
	bindings := []struct {
		view    string
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{"", gocui.KeyCtrlC, a.quit},
		{"", gocui.KeyEsc, a.back},
		{"", gocui.KeyCtrlB, a.bulk(a.ctrl.GenerateAll)},
		{"", gocui.KeyCtrlX, a.bulk(a.ctrl.ExecuteAll)},
		{"", gocui.KeyCtrlD, a.bulk(a.ctrl.DownloadAll)},
		{"", gocui.KeyCtrlL, a.reload},

		{"endpoints", gocui.KeyArrowDown, a.moveSel(1)},
		{"endpoints", gocui.KeyArrowUp, a.moveSel(-1)},
		{"endpoints", gocui.KeyEnter, a.openSection},
		{"endpoints", gocui.KeyBackspace, a.filterBackspace},
		{"endpoints", gocui.KeyBackspace2, a.filterBackspace},
		{"endpoints", gocui.KeyCtrlG, a.single(a.ctrl.GenerateOne, false)},
		{"endpoints", gocui.KeyCtrlE, a.single(a.ctrl.ExecuteOne, false)},

		{"section", 'g', a.single(a.ctrl.GenerateOne, true)},
		{"section", 'e', a.single(a.ctrl.ExecuteOne, true)},
		{"section", 'r', a.toggleResponses},
		{"section", gocui.KeyArrowDown, a.scroll(1)},
		{"section", gocui.KeyArrowUp, a.scroll(-1)},
		{"section", gocui.KeyPgdn, a.scroll(10)},
		{"section", gocui.KeyPgup, a.scroll(-10)},
	}
	for _, b := range bindings {
		if err := g.SetKeybinding(b.view, b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}

	// typing on the endpoint list edits the filter
	for r := rune(32); r <= rune(126); r++ {
		if err := g.SetKeybinding("endpoints", r, gocui.ModNone, a.appendFilterRune(r)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) quit(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }

func (a *App) back(*gocui.Gui, *gocui.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scr = screenEndpoints
	a.status = ""
	return nil
}

func (a *App) reload(*gocui.Gui, *gocui.View) error {
	a.mu.Lock()
	a.scr = screenEndpoints
	a.selected = 0
	a.mu.Unlock()
	go a.do(context.Background(), "extract", a.Reload)
	return nil
}

func (a *App) bulk(op func(context.Context) error) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		go a.do(context.Background(), "bulk", op)
		return nil
	}
}

// single runs op on the open section, or on the highlighted endpoint.
func (a *App) single(op func(context.Context, string, string) error, open bool) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		a.mu.Lock()
		var ep model.Endpoint
		var ok bool
		if open {
			ep, ok = a.active, a.active.Path != ""
		} else {
			ep, ok = a.current()
		}
		a.mu.Unlock()
		if !ok {
			return nil
		}
		go a.do(context.Background(), "single", func(ctx context.Context) error {
			return op(ctx, ep.Path, ep.Method)
		})
		return nil
	}
}

func (a *App) visible() []model.Endpoint {
	return console.Filter(a.ctrl.State().Endpoints(), a.filter)
}

// current is the highlighted endpoint. Callers hold a.mu.
func (a *App) current() (model.Endpoint, bool) {
	eps := a.visible()
	if a.selected < 0 || a.selected >= len(eps) {
		return model.Endpoint{}, false
	}
	return eps[a.selected], true
}

func (a *App) moveSel(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		n := len(a.visible())
		if n == 0 {
			return nil
		}
		a.selected = clamp(a.selected+delta, 0, n-1)
		return nil
	}
}

func (a *App) openSection(*gocui.Gui, *gocui.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	ep, ok := a.current()
	if !ok {
		return nil
	}
	a.active = ep
	a.scr = screenSection
	a.status = ""
	return nil
}

func (a *App) appendFilterRune(r rune) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.filter += string(r)
		a.selected = 0
		return nil
	}
}

func (a *App) filterBackspace(*gocui.Gui, *gocui.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.filter == "" {
		return nil
	}
	a.filter = a.filter[:len(a.filter)-1]
	a.selected = 0
	return nil
}

func (a *App) toggleResponses(*gocui.Gui, *gocui.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expanded = !a.expanded
	return nil
}

func (a *App) scroll(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(_ *gocui.Gui, v *gocui.View) error {
		if v == nil {
			return nil
		}
		ox, oy := v.Origin()
		return v.SetOrigin(ox, max(oy+delta, 0))
	}
}

func (a *App) renderHeader() {
	v, err := a.g.View("header")
	if err != nil {
		return
	}
	v.Clear()
	title := firstNonEmpty(a.title, "no document loaded")
	fmt.Fprintf(v, "%sswagtest%s  -  %s  %s(%d endpoints)%s",
		colorGreen, colorReset, title, colorDim, len(a.ctrl.State().Endpoints()), colorReset)
	if a.busy[string(console.ActionBulk)] || a.busy[string(console.ActionDownload)] {
		fmt.Fprintf(v, "  %s[working]%s", colorYellow, colorReset)
	}
	fmt.Fprintln(v)
}

func (a *App) renderFilter() {
	v, err := a.g.View("filter")
	if err != nil {
		return
	}
	v.Clear()
	fmt.Fprint(v, a.filter)
}

func (a *App) renderEndpoints() {
	v, err := a.g.View("endpoints")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = firstNonEmpty(a.title, "Endpoints")

	main := a.regions[console.RegionMain]
	eps := a.visible()
	if len(eps) == 0 && main.isMessage() {
		fmt.Fprint(v, renderMessage(main.tone, main.text))
		return
	}
	for _, ep := range eps {
		id := console.SectionRegion(ep)
		label := firstNonEmpty(ep.Summary, ep.OperationID)
		if label != "" {
			label = " - " + label
		}
		fmt.Fprintf(v, "%s  %s%s %s\n", colorizeMethod(ep.Method), highlightPathParams(ep.Path), label,
			badge(a.regions[id], a.busy[id]))
	}
	if a.selected >= len(eps) {
		a.selected = max(len(eps)-1, 0)
	}
	_ = v.SetCursor(0, a.selected)
}

func (a *App) renderSection() {
	v, err := a.g.View("section")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = strings.ToUpper(a.active.Method) + " " + a.active.Path

	id := console.SectionRegion(a.active)
	r, ok := a.regions[id]
	if !ok {
		fmt.Fprint(v, renderMessage(console.ToneInfo, "No test cases yet. Press g to generate."))
		return
	}
	fmt.Fprint(v, renderRegion(r, a.expanded))
}

func (a *App) renderOverall() {
	v, err := a.g.View("overall")
	if err != nil {
		return
	}
	v.Clear()
	if r, ok := a.regions[console.RegionOverall]; ok {
		fmt.Fprint(v, renderRegion(r, false))
	}
}

func (a *App) renderFooter() {
	v, err := a.g.View("footer")
	if err != nil {
		return
	}
	v.Clear()
	msg := a.status
	if msg == "" {
		switch a.scr {
		case screenEndpoints:
			msg = "type: filter   enter: open   ctrl+g/ctrl+e: generate/execute   ctrl+b/ctrl+x: all   ctrl+d: download   ctrl+l: reload   ctrl+c: quit"
		case screenSection:
			msg = "g: generate   e: execute   r: show/hide responses   up/down: scroll   esc: back   ctrl+c: quit"
		}
	}
	fmt.Fprint(v, msg)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// saveFile writes data under dir, creating it as needed.
func saveFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, data, 0o644)
}
