package web

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/model"
	"swagtest/internal/session"
	"swagtest/internal/view"
)

type stubService struct {
	endpoints []model.Endpoint
	cases     []model.TestCase
}

func (s *stubService) Extract(context.Context, string) (model.Extraction, error) {
	return model.Extraction{Title: "Petstore", Endpoints: s.endpoints}, nil
}

func (s *stubService) GenerateSingle(_ context.Context, ep model.Endpoint) ([]model.TestCase, error) {
	var out []model.TestCase
	for _, tc := range s.cases {
		if strings.EqualFold(tc.Method, ep.Method) && tc.Endpoint == ep.Path {
			out = append(out, tc)
		}
	}
	return out, nil
}

func (s *stubService) Generate(context.Context, []model.Endpoint, model.Definitions) ([]model.TestCase, error) {
	return s.cases, nil
}

func (s *stubService) Execute(_ context.Context, cases []model.TestCase) (model.Report, error) {
	rep := model.Report{Results: map[string]model.TestResult{}}
	for _, tc := range cases {
		rep.Results[tc.Name] = model.TestResult{Status: model.StatusPassed}
	}
	rep.Summary = &model.Summary{TotalCases: len(cases), PassedCases: len(cases), TotalTime: 0.5}
	return rep, nil
}

func (s *stubService) Download(context.Context, []model.TestCase) ([]byte, error) {
	return []byte("Test Case Name\nlist\n"), nil
}

var (
	listPets  = model.Endpoint{Path: "/pets", Method: "GET"}
	getPet    = model.Endpoint{Path: "/pets/{petId}", Method: "GET"}
	listUsers = model.Endpoint{Path: "/users", Method: "GET"}
)

var sessionRe = regexp.MustCompile(`data-session="([^"]+)"`)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	svc := &stubService{
		endpoints: []model.Endpoint{listPets, getPet, listUsers},
		cases: []model.TestCase{
			{Name: "list", Endpoint: "/pets", Method: "GET", ExpectedStatusCode: 200},
			{Name: "one", Endpoint: "/pets/1", Method: "GET", ExpectedStatusCode: 200},
		},
	}
	h, err := New(svc, opts, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func openPage(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	m := sessionRe.FindStringSubmatch(string(b))
	require.Len(t, m, 2)
	return m[1]
}

func post(t *testing.T, srv *httptest.Server, sid, op, body string) (int, []view.Patch) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/s/"+sid+"/"+op, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, readPatches(t, resp.Body)
}

func readPatches(t *testing.T, r io.Reader) []view.Patch {
	t.Helper()
	var out []view.Patch
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		var p view.Patch
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		out = append(out, p)
	}
	require.NoError(t, sc.Err())
	return out
}

func find(patches []view.Patch, op view.Op, target string) (view.Patch, bool) {
	for i := len(patches) - 1; i >= 0; i-- {
		if patches[i].Op == op && patches[i].Target == target {
			return patches[i], true
		}
	}
	return view.Patch{}, false
}

func section(ep model.Endpoint) string {
	return session.KeyOf(ep).SectionID()
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, Options{Location: "https://petstore.swagger.io/v2/swagger.json"})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(b), `value="https://petstore.swagger.io/v2/swagger.json"`)
	assert.Regexp(t, sessionRe, string(b))
}

func TestStatic(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/static/app.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFilterRunsInPage(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)
	post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.json"}`)

	resp, err := http.Get(srv.URL + "/s/" + sid + "/filter?q=pets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/static/app.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "card.dataset.path.includes(q)")
	assert.NotContains(t, string(b), "/filter")
}

func TestExtractStreamsPatches(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)

	code, patches := post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.json"}`)
	require.Equal(t, http.StatusOK, code)

	results, ok := find(patches, view.OpHTML, console.RegionMain)
	require.True(t, ok)
	assert.Contains(t, results.HTML, "<h2>Petstore</h2>")
	assert.Contains(t, results.HTML, `id="`+section(getPet)+`"`)

	_, ok = find(patches, view.OpShow, idSearch)
	assert.True(t, ok)
	label, ok := find(patches, view.OpText, idGenerate)
	require.True(t, ok)
	assert.Equal(t, "Generate Tests for All 3 Endpoints", label.Text)
}

func TestExtractRejectsYAML(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)

	_, patches := post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.yaml"}`)
	results, ok := find(patches, view.OpHTML, console.RegionMain)
	require.True(t, ok)
	assert.Contains(t, results.HTML, `class="error"`)
}

func TestGenerateAndExecuteOne(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)
	post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.json"}`)

	_, patches := post(t, srv, sid, "execute", `{"path": "/pets", "method": "GET"}`)
	msg, ok := find(patches, view.OpHTML, section(listPets))
	require.True(t, ok)
	assert.Contains(t, msg.HTML, "Please generate test cases first before executing.")

	_, patches = post(t, srv, sid, "generate", `{"path": "/pets", "method": "GET"}`)
	_, ok = find(patches, view.OpDisable, "gen-"+section(listPets))
	assert.True(t, ok)
	_, ok = find(patches, view.OpEnable, "gen-"+section(listPets))
	assert.True(t, ok)
	cases, ok := find(patches, view.OpHTML, section(listPets))
	require.True(t, ok)
	assert.Contains(t, cases.HTML, "Generated Test Cases (1)")

	_, patches = post(t, srv, sid, "execute", `{"path": "/pets", "method": "GET"}`)
	res, ok := find(patches, view.OpHTML, section(listPets))
	require.True(t, ok)
	assert.Contains(t, res.HTML, "PASSED")
}

func TestSingleRequiresPathAndMethod(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)

	resp, err := http.Post(srv.URL+"/s/"+sid+"/generate", "application/json", strings.NewReader(`{"path": "/pets"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteAllAndDownload(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)
	post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.json"}`)

	_, patches := post(t, srv, sid, "execute-all", "")
	summary, ok := find(patches, view.OpHTML, console.RegionOverall)
	require.True(t, ok)
	assert.Contains(t, summary.HTML, "Overall Test Execution Summary")
	assert.Contains(t, summary.HTML, "0.5000s")

	none, ok := find(patches, view.OpHTML, section(listUsers))
	require.True(t, ok)
	assert.Contains(t, none.HTML, "No test cases to display results for.")

	_, patches = post(t, srv, sid, "download", "")
	dl, ok := find(patches, view.OpDownload, "")
	require.True(t, ok)
	assert.Equal(t, console.DownloadFilename, dl.Filename)
	data, err := base64.StdEncoding.DecodeString(dl.Data)
	require.NoError(t, err)
	assert.Equal(t, "Test Case Name\nlist\n", string(data))
}

func TestBulkDisablesEndpointButtons(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)
	post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.json"}`)

	_, patches := post(t, srv, sid, "generate-all", "")
	for _, op := range []view.Op{view.OpDisable, view.OpEnable} {
		for _, sel := range []string{selGenOne, selExecOne} {
			p, ok := find(patches, op, sel)
			require.True(t, ok, "%s %s", op, sel)
			assert.True(t, p.All)
		}
		_, ok := find(patches, op, idGenerate)
		assert.True(t, ok)
	}
}

func TestDownloadBeforeGenerateAlerts(t *testing.T) {
	srv := newTestServer(t, Options{})
	sid := openPage(t, srv)
	post(t, srv, sid, "extract", `{"swagger_url": "http://x/swagger.json"}`)

	_, patches := post(t, srv, sid, "download", "")
	require.Len(t, patches, 1)
	assert.Equal(t, view.OpAlert, patches[0].Op)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t, Options{})
	a := openPage(t, srv)
	b := openPage(t, srv)
	require.NotEqual(t, a, b)

	post(t, srv, a, "extract", `{"swagger_url": "http://x/swagger.json"}`)
	_, patches := post(t, srv, b, "generate-all", "")
	require.Len(t, patches, 1)
	assert.Equal(t, view.OpAlert, patches[0].Op)
	assert.Equal(t, "No endpoints available", patches[0].Text)
}

func TestEvictedSession(t *testing.T) {
	srv := newTestServer(t, Options{MaxSessions: 1})
	first := openPage(t, srv)
	openPage(t, srv)

	code, patches := post(t, srv, first, "generate-all", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.Len(t, patches, 1)
	assert.Equal(t, view.OpAlert, patches[0].Op)
}
