package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swagtest/internal/model"
	"swagtest/internal/session"
)

type fakeService struct {
	mu    sync.Mutex
	calls map[string]int

	extraction model.Extraction
	extractErr error
	single     map[session.Key][]model.TestCase
	bulk       []model.TestCase
	bulkErr    error
	report     model.Report
	executed   [][]model.TestCase
	file       []byte

	// block, when set, holds GenerateSingle until closed.
	block chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{calls: map[string]int{}, single: map[session.Key][]model.TestCase{}}
}

func (f *fakeService) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeService) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeService) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeService) Extract(_ context.Context, _ string) (model.Extraction, error) {
	f.count("extract")
	return f.extraction, f.extractErr
}

func (f *fakeService) GenerateSingle(_ context.Context, ep model.Endpoint) ([]model.TestCase, error) {
	f.count("generate_single")
	if f.block != nil {
		<-f.block
	}
	return f.single[session.KeyOf(ep)], nil
}

func (f *fakeService) Generate(_ context.Context, _ []model.Endpoint, _ model.Definitions) ([]model.TestCase, error) {
	f.count("generate")
	return f.bulk, f.bulkErr
}

func (f *fakeService) Execute(_ context.Context, cases []model.TestCase) (model.Report, error) {
	f.count("execute")
	f.mu.Lock()
	f.executed = append(f.executed, cases)
	f.mu.Unlock()
	return f.report, nil
}

func (f *fakeService) Download(_ context.Context, _ []model.TestCase) ([]byte, error) {
	f.count("download")
	return f.file, nil
}

type message struct {
	Tone Tone
	Text string
}

type recorder struct {
	mu       sync.Mutex
	messages map[string][]message
	title    string
	shown    []model.Endpoint
	controls int
	cases    map[session.Key][]model.TestCase
	results  map[session.Key]map[string]model.TestResult
	summary  *model.Summary
	alerts   []string
	saved    map[string][]byte
	busy     []Scope
	idle     []Scope
}

func newRecorder() *recorder {
	return &recorder{
		messages: map[string][]message{},
		cases:    map[session.Key][]model.TestCase{},
		results:  map[session.Key]map[string]model.TestResult{},
		saved:    map[string][]byte{},
		controls: -1,
	}
}

func (r *recorder) Message(region string, tone Tone, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[region] = append(r.messages[region], message{tone, text})
}

func (r *recorder) Endpoints(title string, eps []model.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title, r.shown = title, eps
}

func (r *recorder) Controls(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = n
}

func (r *recorder) TestCases(ep model.Endpoint, cases []model.TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[session.KeyOf(ep)] = cases
}

func (r *recorder) Results(ep model.Endpoint, _ []model.TestCase, res map[string]model.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[session.KeyOf(ep)] = res
}

func (r *recorder) Summary(s model.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &s
}

func (r *recorder) Busy(s Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = append(r.busy, s)
}

func (r *recorder) Idle(s Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idle = append(r.idle, s)
}

func (r *recorder) Alert(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, text)
}

func (r *recorder) Save(name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[name] = data
	return nil
}

func (r *recorder) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

func (r *recorder) last(region string) message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[region]
	if len(msgs) == 0 {
		return message{}
	}
	return msgs[len(msgs)-1]
}

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	getPets = model.Endpoint{Path: "/pets", Method: "GET"}
	postPet = model.Endpoint{Path: "/pets", Method: "POST"}
	getPet  = model.Endpoint{Path: "/pets/{petId}", Method: "GET"}
)

func tc(name, path, method string) model.TestCase {
	return model.TestCase{Name: name, Endpoint: path, Method: method, ExpectedStatusCode: 200}
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func setup(t *testing.T, eps ...model.Endpoint) (*Controller, *fakeService, *recorder) {
	t.Helper()
	svc := newFakeService()
	svc.extraction = model.Extraction{Title: "Petstore", Endpoints: eps}
	view := newRecorder()
	c := New(svc, session.New(), view, zap.NewNop())
	if len(eps) > 0 {
		require.NoError(t, c.Extract(context.Background(), "http://petstore/swagger.json"))
	}
	return c, svc, view
}

func TestExtractRejectsNonJSON(t *testing.T) {
	c, svc, view := setup(t)

	err := c.Extract(context.Background(), "http://petstore/swagger.yaml")
	require.ErrorIs(t, err, ErrInvalidLocation)
	assert.Zero(t, svc.Total())
	assert.Equal(t, ToneError, view.last(RegionMain).Tone)
}

func TestExtractLoadsEndpoints(t *testing.T) {
	c, svc, view := setup(t, getPets, postPet)

	assert.Equal(t, 1, svc.Calls("extract"))
	assert.Equal(t, "Petstore", view.title)
	assert.Len(t, view.shown, 2)
	assert.Equal(t, 2, view.controls)
	assert.Len(t, c.State().Endpoints(), 2)
}

func TestExtractDefaultTitle(t *testing.T) {
	svc := newFakeService()
	svc.extraction = model.Extraction{Endpoints: []model.Endpoint{getPets}}
	view := newRecorder()
	c := New(svc, session.New(), view, zap.NewNop())

	require.NoError(t, c.Extract(context.Background(), "a.JSON"))
	assert.Equal(t, "Endpoints", view.title)
}

func TestExtractFailureClearsEndpoints(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.extractErr = errors.New("boom")

	require.Error(t, c.Extract(context.Background(), "http://other/swagger.json"))
	assert.Empty(t, c.State().Endpoints())
	assert.Equal(t, 0, view.controls)
	assert.Equal(t, ToneError, view.last(RegionMain).Tone)
}

func TestExtractClearsCache(t *testing.T) {
	c, svc, _ := setup(t, getPets)
	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("a", "/pets", "GET")}
	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "GET"))
	require.Equal(t, 1, c.State().CacheSize())

	require.NoError(t, c.Extract(context.Background(), "http://petstore/swagger.json"))
	assert.Zero(t, c.State().CacheSize())
}

func TestExtractRejectedLocationStillResets(t *testing.T) {
	c, svc, _ := setup(t, getPets)
	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("a", "/pets", "GET")}
	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "GET"))

	require.ErrorIs(t, c.Extract(context.Background(), "swagger.yaml"), ErrInvalidLocation)
	assert.Zero(t, c.State().CacheSize())
}

func TestGenerateOneCachesAndRenders(t *testing.T) {
	c, svc, view := setup(t, getPets, postPet)
	cases := []model.TestCase{tc("list ok", "/pets", "GET"), tc("list limit", "/pets?limit=1", "GET")}
	svc.single[session.KeyOf(getPets)] = cases

	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "get"))
	assert.Equal(t, cases, c.State().Cached(session.KeyOf(getPets)))
	assert.Equal(t, cases, view.cases[session.KeyOf(getPets)])
	assert.Empty(t, c.State().Cached(session.KeyOf(postPet)))

	require.Len(t, view.busy, 1)
	require.Len(t, view.idle, 1)
	assert.Equal(t, ActionGenerate, view.busy[0].Action)
}

func TestGenerateOneUnknownEndpoint(t *testing.T) {
	c, svc, view := setup(t, getPets)

	err := c.GenerateOne(context.Background(), "/nope", "GET")
	require.ErrorIs(t, err, ErrEndpointNotFound)
	assert.Zero(t, svc.Calls("generate_single"))
	region := SectionRegion(model.Endpoint{Path: "/nope", Method: "GET"})
	assert.Equal(t, ToneError, view.last(region).Tone)
}

func TestExecuteOneBeforeGenerateMakesNoCall(t *testing.T) {
	c, svc, view := setup(t, getPets)
	before := svc.Total()

	err := c.ExecuteOne(context.Background(), "/pets", "GET")
	require.ErrorIs(t, err, ErrNotGenerated)
	assert.Equal(t, before, svc.Total())
	assert.Equal(t, message{ToneError, "Please generate test cases first before executing."}, view.last(SectionRegion(getPets)))
}

func TestExecuteOneShowsOnlyItsResults(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("a", "/pets", "GET")}
	svc.report = model.Report{Results: map[string]model.TestResult{
		"a": {Status: model.StatusPassed, ActualStatusCode: intp(200)},
		"z": {Status: model.StatusFailed},
	}}

	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "GET"))
	require.NoError(t, c.ExecuteOne(context.Background(), "/pets", "GET"))

	res := view.results[session.KeyOf(getPets)]
	require.Len(t, res, 1)
	assert.Equal(t, model.StatusPassed, res["a"].Status)
}

func TestGenerateAllWithoutEndpointsAlerts(t *testing.T) {
	c, svc, view := setup(t)

	require.ErrorIs(t, c.GenerateAll(context.Background()), ErrNoEndpoints)
	require.ErrorIs(t, c.ExecuteAll(context.Background()), ErrNoEndpoints)
	assert.Equal(t, []string{"No endpoints available", "No endpoints available"}, view.alerts)
	assert.Zero(t, svc.Total())
}

func TestGenerateAllDistributes(t *testing.T) {
	c, svc, view := setup(t, getPets, postPet, getPet)
	svc.bulk = []model.TestCase{
		tc("list", "/pets", "GET"),
		tc("list empty", "/pets", "GET"),
		tc("create", "/pets", "POST"),
		tc("create bad", "/pets", "POST"),
		tc("get one", "/pets/42", "GET"),
	}

	require.NoError(t, c.GenerateAll(context.Background()))
	assert.Len(t, c.State().Cached(session.KeyOf(getPets)), 2)
	assert.Len(t, c.State().Cached(session.KeyOf(postPet)), 2)
	assert.Len(t, c.State().Cached(session.KeyOf(getPet)), 1)
	assert.Len(t, view.cases, 3)
	assert.Equal(t, message{ToneSuccess, "Successfully generated 5 test cases across 3 endpoints."}, view.last(RegionOverall))
}

func TestGenerateAllNoneForSection(t *testing.T) {
	c, svc, view := setup(t, getPets, postPet)
	svc.bulk = []model.TestCase{tc("list", "/pets", "GET")}

	require.NoError(t, c.GenerateAll(context.Background()))
	assert.Equal(t, message{ToneInfo, "No test cases generated for POST /pets."}, view.last(SectionRegion(postPet)))
	_, complete := c.State().Complete()
	assert.False(t, complete)
}

func TestGenerateAllReplacesCache(t *testing.T) {
	c, svc, _ := setup(t, getPets, postPet)
	svc.single[session.KeyOf(postPet)] = []model.TestCase{tc("old", "/pets", "POST")}
	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "POST"))

	svc.bulk = []model.TestCase{tc("list", "/pets", "GET")}
	require.NoError(t, c.GenerateAll(context.Background()))
	assert.Empty(t, c.State().Cached(session.KeyOf(postPet)))
}

func TestExecuteAllScenario(t *testing.T) {
	c, svc, view := setup(t, getPets, postPet, getPet)
	svc.bulk = []model.TestCase{
		tc("list", "/pets", "GET"),
		tc("list empty", "/pets", "GET"),
		tc("create", "/pets", "POST"),
		tc("create bad", "/pets", "POST"),
		tc("get one", "/pets/42", "GET"),
	}
	svc.report = model.Report{
		Results: map[string]model.TestResult{
			"list":       {Status: model.StatusPassed, ActualStatusCode: intp(200), ResponseTime: floatp(0.2)},
			"list empty": {Status: model.StatusPassed, ActualStatusCode: intp(200), ResponseTime: floatp(0.2)},
			"create":     {Status: model.StatusPassed, ActualStatusCode: intp(200), ResponseTime: floatp(0.3)},
			"create bad": {Status: model.StatusFailed, ActualStatusCode: intp(500), ResponseTime: floatp(0.3)},
			"get one":    {Status: model.StatusPassed, ActualStatusCode: intp(200), ResponseTime: floatp(0.2345)},
		},
		Summary: &model.Summary{TotalCases: 5, PassedCases: 4, FailedCases: 1, TotalTime: 1.2345},
	}

	require.NoError(t, c.ExecuteAll(context.Background()))
	assert.Equal(t, 1, svc.Calls("generate"))
	assert.Equal(t, 1, svc.Calls("execute"))
	require.Len(t, svc.executed, 1)
	assert.Len(t, svc.executed[0], 5)

	assert.Len(t, view.results[session.KeyOf(getPets)], 2)
	assert.Len(t, view.results[session.KeyOf(postPet)], 2)
	assert.Len(t, view.results[session.KeyOf(getPet)], 1)
	assert.Equal(t, model.StatusFailed, view.results[session.KeyOf(postPet)]["create bad"].Status)

	require.NotNil(t, view.summary)
	assert.Equal(t, 4, view.summary.PassedCases)
	assert.Equal(t, 1, view.summary.FailedCases)
	assert.InDelta(t, 1.2345, view.summary.TotalTime, 1e-9)

	// Second run reuses the cache.
	require.NoError(t, c.ExecuteAll(context.Background()))
	assert.Equal(t, 1, svc.Calls("generate"))
	assert.Equal(t, 2, svc.Calls("execute"))
}

func TestExecuteAllWithoutSummary(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("a", "/pets", "GET")}
	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "GET"))
	svc.report = model.Report{Results: map[string]model.TestResult{"a": {Status: model.StatusPassed}}}

	require.NoError(t, c.ExecuteAll(context.Background()))
	assert.Zero(t, svc.Calls("generate"))
	assert.Nil(t, view.summary)
	assert.Equal(t, message{ToneSuccess, "Execution completed. No overall summary available."}, view.last(RegionOverall))
}

func TestExecuteAllNothingGenerated(t *testing.T) {
	c, svc, view := setup(t, getPets)

	require.ErrorIs(t, c.ExecuteAll(context.Background()), ErrNoTestCases)
	assert.Zero(t, svc.Calls("execute"))
	assert.Equal(t, message{ToneError, "No test cases available to execute."}, view.last(RegionOverall))
}

func TestExecuteAllGenerationFailure(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.bulkErr = errors.New("down")

	require.Error(t, c.ExecuteAll(context.Background()))
	assert.Zero(t, svc.Calls("execute"))
	assert.Equal(t, ToneError, view.last(RegionOverall).Tone)
}

func TestDownloadAll(t *testing.T) {
	c, svc, view := setup(t, getPets)

	require.ErrorIs(t, c.DownloadAll(context.Background()), ErrNothingToDownload)
	assert.Equal(t, []string{"No test cases have been generated yet. Please generate tests first."}, view.alerts)
	assert.Zero(t, svc.Calls("download"))

	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("a", "/pets", "GET")}
	svc.file = []byte("Test Case Name\na\n")
	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "GET"))

	require.NoError(t, c.DownloadAll(context.Background()))
	assert.Equal(t, svc.file, view.saved[DownloadFilename])
	assert.Equal(t, message{ToneSuccess, "Test cases downloaded successfully!"}, view.last(RegionOverall))
}

func TestDownloadAllEmptyEntries(t *testing.T) {
	c, svc, view := setup(t, getPets)
	require.NoError(t, c.GenerateOne(context.Background(), "/pets", "GET"))
	require.Equal(t, 1, c.State().CacheSize())

	require.ErrorIs(t, c.DownloadAll(context.Background()), ErrNothingToDownload)
	assert.Zero(t, svc.Calls("download"))
	assert.Equal(t, message{ToneInfo, "No test cases found to download."}, view.last(RegionOverall))
}

func TestDuplicateGenerateIsBusy(t *testing.T) {
	c, svc, _ := setup(t, getPets)
	svc.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- c.GenerateOne(context.Background(), "/pets", "GET") }()
	require.Eventually(t, func() bool { return svc.Calls("generate_single") == 1 }, timeout, tick)

	assert.ErrorIs(t, c.GenerateOne(context.Background(), "/pets", "GET"), ErrBusy)

	close(svc.block)
	require.NoError(t, <-done)
}

func TestExecuteBeforeGenerateKeepsPendingCases(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.block = make(chan struct{})
	cases := []model.TestCase{tc("a", "/pets", "GET")}
	svc.single[session.KeyOf(getPets)] = cases

	done := make(chan error, 1)
	go func() { done <- c.GenerateOne(context.Background(), "/pets", "GET") }()
	require.Eventually(t, func() bool { return svc.Calls("generate_single") == 1 }, timeout, tick)

	require.ErrorIs(t, c.ExecuteOne(context.Background(), "/pets", "GET"), ErrNotGenerated)
	assert.Zero(t, svc.Calls("execute"))

	close(svc.block)
	require.NoError(t, <-done)
	assert.Equal(t, cases, c.State().Cached(session.KeyOf(getPets)))
	assert.Equal(t, cases, view.cases[session.KeyOf(getPets)])
}

func TestStaleResponseIsDropped(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.block = make(chan struct{})
	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("late", "/pets", "GET")}

	done := make(chan error, 1)
	go func() { done <- c.GenerateOne(context.Background(), "/pets", "GET") }()
	require.Eventually(t, func() bool { return svc.Calls("generate_single") == 1 }, timeout, tick)

	// A new extraction supersedes the in-flight request.
	svc.extraction = model.Extraction{Title: "Other", Endpoints: []model.Endpoint{getPets}}
	go func() {
		_ = c.Extract(context.Background(), "http://other/swagger.json")
	}()
	require.Eventually(t, func() bool { return view.Title() == "Other" }, timeout, tick)

	close(svc.block)
	require.NoError(t, <-done)
	assert.Empty(t, c.State().Cached(session.KeyOf(getPets)))
	assert.Nil(t, view.cases[session.KeyOf(getPets)])
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "DELETE /pets/{id}", label(model.Endpoint{Path: "/pets/{id}", Method: "delete"}))
	assert.Equal(t, "fallback", describe(fmt.Errorf("x"), "fallback"))
}

func TestWithSharesConsole(t *testing.T) {
	c, svc, view := setup(t, getPets)
	svc.block = make(chan struct{})
	svc.single[session.KeyOf(getPets)] = []model.TestCase{tc("a", "/pets", "GET")}

	done := make(chan error, 1)
	go func() { done <- c.GenerateOne(context.Background(), "/pets", "GET") }()
	require.Eventually(t, func() bool { return svc.Calls("generate_single") == 1 }, timeout, tick)

	other := newRecorder()
	h := c.With(other)
	assert.ErrorIs(t, h.GenerateOne(context.Background(), "/pets", "GET"), ErrBusy)
	assert.Same(t, c.State(), h.State())

	close(svc.block)
	require.NoError(t, <-done)
	assert.Len(t, h.State().Cached(session.KeyOf(getPets)), 1)
	assert.Empty(t, other.cases)
	view.mu.Lock()
	assert.Len(t, view.cases[session.KeyOf(getPets)], 1)
	view.mu.Unlock()
}
