// Package console orchestrates the test lifecycle: extraction, per-endpoint
// and bulk generation/execution, and export. It owns no markup; every
// visible change goes through a Presenter.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"swagtest/internal/matcher"
	"swagtest/internal/model"
	"swagtest/internal/service"
	"swagtest/internal/session"
)

// DownloadFilename is the name the exported cases are saved under.
const DownloadFilename = "all_test_cases.csv"

var (
	ErrEndpointNotFound  = errors.New("endpoint not found in current data")
	ErrNotGenerated      = errors.New("test cases have not been generated")
	ErrNoEndpoints       = errors.New("no endpoints available")
	ErrNoTestCases       = errors.New("no test cases available to execute")
	ErrNothingToDownload = errors.New("no test cases to download")
	ErrBusy              = errors.New("operation already in progress")
)

// Service is the collaborator the controller delegates to.
type Service interface {
	Extract(ctx context.Context, location string) (model.Extraction, error)
	GenerateSingle(ctx context.Context, ep model.Endpoint) ([]model.TestCase, error)
	Generate(ctx context.Context, eps []model.Endpoint, defs model.Definitions) ([]model.TestCase, error)
	Execute(ctx context.Context, cases []model.TestCase) (model.Report, error)
	Download(ctx context.Context, cases []model.TestCase) ([]byte, error)
}

type Controller struct {
	svc    Service
	state  *session.State
	view   Presenter
	logger *zap.Logger
	locks  *locks
}

// locks is shared by every handle of one console.
type locks struct {
	mu   sync.Mutex
	busy map[string]bool

	// commit serialises ticket checks with the writes they guard.
	commit sync.Mutex
}

func New(svc Service, state *session.State, view Presenter, logger *zap.Logger) *Controller {
	return &Controller{
		svc:    svc,
		state:  state,
		view:   view,
		logger: logger,
		locks:  &locks{busy: map[string]bool{}},
	}
}

// With returns a handle on the same console that draws through view. It
// shares state, busy scopes and tickets with c.
func (c *Controller) With(view Presenter) *Controller {
	h := *c
	h.view = view
	return &h
}

func (c *Controller) State() *session.State {
	return c.state
}

// Extract loads the endpoint list of the document at location.
func (c *Controller) Extract(ctx context.Context, location string) error {
	c.view.Message(RegionMain, ToneLoading, "Loading...")
	c.state.Reset()

	if err := ValidateLocation(location); err != nil {
		c.view.Message(RegionMain, ToneError, "Error: Only JSON Swagger files are supported. Please ensure swagger json path is given.")
		return err
	}

	t := c.state.Issue(RegionMain)
	x, err := c.svc.Extract(ctx, strings.TrimSpace(location))
	if err != nil {
		c.logger.Error("failed to extract endpoints", zap.String("location", location), zap.Error(err))
		c.commit(t, func() {
			c.state.Unload()
			c.view.Controls(0)
			c.view.Message(RegionMain, ToneError, "Error: Failed to extract endpoints. Kindly make sure the swagger is 2.0 and URL is correct")
		})
		return fmt.Errorf("extract %s: %w", location, err)
	}

	c.commit(t, func() {
		c.state.Load(x)
		title := x.Title
		if title == "" {
			title = "Endpoints"
		}
		c.view.Controls(len(x.Endpoints))
		c.view.Endpoints(title, x.Endpoints)
	})
	c.logger.Info("extracted endpoints", zap.String("location", location), zap.Int("endpoints", len(x.Endpoints)))
	return nil
}

// GenerateOne generates test cases for a single endpoint and merges them
// into the cache.
func (c *Controller) GenerateOne(ctx context.Context, path, method string) error {
	target := model.Endpoint{Path: path, Method: method}
	scope := Scope{Action: ActionGenerate, Endpoint: target}
	if !c.acquire(scope) {
		return ErrBusy
	}
	defer c.release(scope)

	region := SectionRegion(target)
	t := c.state.Issue(region)
	c.view.Message(region, ToneLoading, "Generating test cases...")

	ep, ok := c.state.Find(path, method)
	if !ok {
		c.commit(t, func() {
			c.view.Message(region, ToneError, "Error generating test cases: Endpoint not found in current data.")
		})
		return ErrEndpointNotFound
	}

	cases, err := c.svc.GenerateSingle(ctx, ep)
	if err != nil {
		c.logger.Error("failed to generate test cases", zap.String("endpoint", label(ep)), zap.Error(err))
		c.commit(t, func() {
			c.view.Message(region, ToneError, "Error generating test cases: "+describe(err, "Failed to generate test cases for "+label(ep)))
		})
		return fmt.Errorf("generate %s: %w", label(ep), err)
	}

	c.commit(t, func() {
		c.state.Store(session.KeyOf(ep), cases)
		c.view.TestCases(ep, cases)
	})
	return nil
}

// ExecuteOne runs the cached cases of one endpoint.
func (c *Controller) ExecuteOne(ctx context.Context, path, method string) error {
	target := model.Endpoint{Path: path, Method: method}
	scope := Scope{Action: ActionExecute, Endpoint: target}
	if !c.acquire(scope) {
		return ErrBusy
	}
	defer c.release(scope)

	region := SectionRegion(target)
	key := session.NewKey(path, method)
	cases := c.state.Cached(key)
	if len(cases) == 0 {
		c.view.Message(region, ToneError, "Please generate test cases first before executing.")
		return ErrNotGenerated
	}
	// Issued only once a request goes out so a rejected click never
	// supersedes a generation still in flight.
	t := c.state.Issue(region)

	ep, ok := c.state.Find(path, method)
	if !ok {
		ep = target
	}

	c.view.Message(region, ToneLoading, "Executing tests for this endpoint...")
	rep, err := c.svc.Execute(ctx, cases)
	if err != nil {
		c.logger.Error("failed to execute test cases", zap.String("endpoint", label(ep)), zap.Error(err))
		c.commit(t, func() {
			c.view.Message(region, ToneError, "Error executing tests: "+describe(err, "Failed to execute test cases for "+label(ep)))
		})
		return fmt.Errorf("execute %s: %w", label(ep), err)
	}

	c.commit(t, func() {
		c.view.Results(ep, cases, rep.For(cases))
	})
	return nil
}

// GenerateAll generates cases for every endpoint in one call and replaces
// the cache with their distribution.
func (c *Controller) GenerateAll(ctx context.Context) error {
	eps := c.state.Endpoints()
	if len(eps) == 0 {
		c.view.Alert("No endpoints available")
		return ErrNoEndpoints
	}

	scope := Scope{Action: ActionBulk}
	if !c.acquire(scope) {
		return ErrBusy
	}
	defer c.release(scope)

	overall := c.state.Issue(RegionOverall)
	sections := c.issueSections(eps)
	c.view.Message(RegionOverall, ToneLoading, "Generating test cases for all endpoints...")

	all, dist, err := c.generateAll(ctx, eps)
	if err != nil {
		c.commit(overall, func() {
			c.view.Message(RegionOverall, ToneError, "Error: "+describe(err, "Failed to generate test cases for all endpoints"))
		})
		return err
	}

	c.distribute(eps, dist, sections)
	c.commit(overall, func() {
		c.view.Message(RegionOverall, ToneSuccess,
			fmt.Sprintf("Successfully generated %d test cases across %d endpoints.", len(all), len(dist)))
	})
	return nil
}

// ExecuteAll runs every endpoint's cases in one call, generating first when
// any endpoint has none, and shows each endpoint only its own results.
func (c *Controller) ExecuteAll(ctx context.Context) error {
	eps := c.state.Endpoints()
	if len(eps) == 0 {
		c.view.Alert("No endpoints available")
		return ErrNoEndpoints
	}

	scope := Scope{Action: ActionBulk}
	if !c.acquire(scope) {
		return ErrBusy
	}
	defer c.release(scope)

	overall := c.state.Issue(RegionOverall)
	sections := c.issueSections(eps)
	c.view.Message(RegionOverall, ToneLoading, "Checking for generated test cases...")

	all, complete := c.state.Complete()
	if !complete {
		c.view.Message(RegionOverall, ToneWarning, "Not all test cases are generated. Generating all test cases first...")
		_, dist, err := c.generateAll(ctx, eps)
		if err != nil {
			c.commit(overall, func() {
				c.view.Message(RegionOverall, ToneError, "Error during pre-execution generation: "+describe(err, "Failed to generate test cases before bulk execution"))
			})
			return err
		}
		c.distribute(eps, dist, sections)
		all = c.state.Flatten()
	} else {
		c.view.Message(RegionOverall, ToneSuccess, "All test cases are already generated. Proceeding to execution...")
	}

	if len(all) == 0 {
		c.commit(overall, func() {
			c.view.Message(RegionOverall, ToneError, "No test cases available to execute.")
		})
		return ErrNoTestCases
	}

	c.view.Message(RegionOverall, ToneLoading, "Executing tests for all endpoints...")
	rep, err := c.svc.Execute(ctx, all)
	if err != nil {
		c.logger.Error("failed to execute test cases", zap.Int("cases", len(all)), zap.Error(err))
		c.commit(overall, func() {
			c.view.Message(RegionOverall, ToneError, "Error: "+describe(err, "Failed to execute test cases"))
		})
		return fmt.Errorf("execute all: %w", err)
	}

	c.locks.commit.Lock()
	for _, ep := range eps {
		if !c.state.Current(sections[session.KeyOf(ep)]) {
			continue
		}
		cases := c.state.Cached(session.KeyOf(ep))
		c.view.Results(ep, cases, rep.For(cases))
	}
	c.locks.commit.Unlock()

	c.commit(overall, func() {
		if rep.Summary != nil {
			c.view.Summary(*rep.Summary)
			return
		}
		c.view.Message(RegionOverall, ToneSuccess, "Execution completed. No overall summary available.")
	})
	c.logger.Info("executed test cases", zap.Int("cases", len(all)), zap.Int("results", len(rep.Results)))
	return nil
}

// DownloadAll exports every cached case through the collaborator and saves
// the file.
func (c *Controller) DownloadAll(ctx context.Context) error {
	if c.state.CacheSize() == 0 {
		c.view.Alert("No test cases have been generated yet. Please generate tests first.")
		return ErrNothingToDownload
	}

	scope := Scope{Action: ActionDownload}
	if !c.acquire(scope) {
		return ErrBusy
	}
	defer c.release(scope)

	overall := c.state.Issue(RegionOverall)
	c.view.Message(RegionOverall, ToneLoading, "Preparing CSV for download...")

	all := c.state.Flatten()
	if len(all) == 0 {
		c.view.Message(RegionOverall, ToneInfo, "No test cases found to download.")
		return ErrNothingToDownload
	}

	data, err := c.svc.Download(ctx, all)
	if err == nil {
		err = c.view.Save(DownloadFilename, data)
	}
	if err != nil {
		c.logger.Error("failed to download test cases", zap.Error(err))
		c.commit(overall, func() {
			c.view.Message(RegionOverall, ToneError, "Error downloading test cases: "+err.Error())
		})
		return fmt.Errorf("download: %w", err)
	}

	c.commit(overall, func() {
		c.view.Message(RegionOverall, ToneSuccess, "Test cases downloaded successfully!")
	})
	return nil
}

func (c *Controller) generateAll(ctx context.Context, eps []model.Endpoint) ([]model.TestCase, map[session.Key][]model.TestCase, error) {
	all, err := c.svc.Generate(ctx, eps, c.state.Definitions())
	if err != nil {
		c.logger.Error("failed to generate test cases", zap.Int("endpoints", len(eps)), zap.Error(err))
		return nil, nil, fmt.Errorf("generate all: %w", err)
	}
	dist, err := matcher.Distribute(eps, all)
	if err != nil {
		return nil, nil, fmt.Errorf("distribute test cases: %w", err)
	}
	return all, dist, nil
}

// distribute replaces the cache with dist and draws each section. Sections
// taken over by a newer request keep their current entry and display.
func (c *Controller) distribute(eps []model.Endpoint, dist map[session.Key][]model.TestCase, sections map[session.Key]session.Ticket) {
	c.locks.commit.Lock()
	defer c.locks.commit.Unlock()

	next := make(map[session.Key][]model.TestCase, len(dist))
	var fresh []model.Endpoint
	for _, ep := range eps {
		k := session.KeyOf(ep)
		if c.state.Current(sections[k]) {
			next[k] = dist[k]
			fresh = append(fresh, ep)
			continue
		}
		if old := c.state.Cached(k); len(old) > 0 {
			next[k] = old
		}
	}
	c.state.ReplaceCache(next)

	for _, ep := range fresh {
		cases := next[session.KeyOf(ep)]
		if len(cases) == 0 {
			c.view.Message(SectionRegion(ep), ToneInfo,
				fmt.Sprintf("No test cases generated for %s.", label(ep)))
			continue
		}
		c.view.TestCases(ep, cases)
	}
}

func (c *Controller) issueSections(eps []model.Endpoint) map[session.Key]session.Ticket {
	out := make(map[session.Key]session.Ticket, len(eps))
	for _, ep := range eps {
		out[session.KeyOf(ep)] = c.state.Issue(SectionRegion(ep))
	}
	return out
}

// commit runs fn only while t is still the newest ticket of its region.
func (c *Controller) commit(t session.Ticket, fn func()) bool {
	c.locks.commit.Lock()
	defer c.locks.commit.Unlock()
	if !c.state.Current(t) {
		c.logger.Debug("dropping stale response", zap.String("region", t.Region), zap.Uint64("ticket", t.N))
		return false
	}
	fn()
	return true
}

// acquire marks s as running and disables its controls. Bulk work blocks
// every other action.
func (c *Controller) acquire(s Scope) bool {
	c.locks.mu.Lock()
	key := s.key()
	if c.locks.busy[key] || (s.Action != ActionBulk && c.locks.busy[string(ActionBulk)]) {
		c.locks.mu.Unlock()
		return false
	}
	c.locks.busy[key] = true
	c.locks.mu.Unlock()

	c.view.Busy(s)
	return true
}

func (c *Controller) release(s Scope) {
	c.locks.mu.Lock()
	delete(c.locks.busy, s.key())
	c.locks.mu.Unlock()

	c.view.Idle(s)
}

func label(ep model.Endpoint) string {
	return strings.ToUpper(ep.Method) + " " + ep.Path
}

// describe keeps user-facing messages short: the fallback, plus the
// collaborator's own explanation when it sent one.
func describe(err error, fallback string) string {
	var se *service.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return fallback + " (" + se.Message + ")"
	}
	return fallback
}
