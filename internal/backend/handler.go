package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"swagtest/internal/export"
	"swagtest/internal/model"
	"swagtest/internal/server"
	"swagtest/internal/service"
)

// maxRequest bounds a request body.
const maxRequest = 32 << 20

type Handler struct {
	core   *Core
	logger *zap.Logger
	router chi.Router
}

func NewHandler(core *Core, logger *zap.Logger) *Handler {
	h := &Handler{core: core, logger: logger}
	r := server.NewRouter(logger)
	r.Post(service.PathExtract, h.extract)
	r.Post(service.PathGenerate, h.generate)
	r.Post(service.PathGenerateSingle, h.generateSingle)
	r.Post(service.PathExecute, h.execute)
	r.Post(service.PathDownload, h.download)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// body reads the request as one JSON object. An empty body reads as {}.
func body(w http.ResponseWriter, r *http.Request) (gjson.Result, bool) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxRequest)); err != nil {
		server.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return gjson.Result{}, false
	}
	raw := bytes.TrimSpace(buf.Bytes())
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !gjson.ValidBytes(raw) {
		server.Error(w, http.StatusBadRequest, "Invalid request body: not valid JSON")
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(raw), true
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	in, ok := body(w, r)
	if !ok {
		return
	}
	loc := strings.TrimSpace(in.Get("swagger_url").String())
	if loc == "" {
		server.Error(w, http.StatusBadRequest, "Swagger URL is required")
		return
	}

	x, err := h.core.Extract(r.Context(), loc)
	if err != nil {
		server.Error(w, http.StatusNotFound, "No endpoints found or error extracting from URL")
		return
	}
	if x.Definitions == nil {
		x.Definitions = model.Definitions{}
	}
	server.JSON(w, http.StatusOK, x)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	in, ok := body(w, r)
	if !ok {
		return
	}
	eps := in.Get("endpoints")
	if !eps.Exists() || eps.Type == gjson.Null || (eps.IsArray() && len(eps.Array()) == 0) {
		server.Error(w, http.StatusBadRequest, "No endpoints provided")
		return
	}
	raw := eps.Raw
	if eps.IsObject() {
		raw = "[" + raw + "]"
	}
	var endpoints []model.Endpoint
	if err := json.Unmarshal([]byte(raw), &endpoints); err != nil {
		server.Error(w, http.StatusBadRequest, fmt.Sprintf("Invalid endpoint data: %v", err))
		return
	}
	var defs model.Definitions
	if d := in.Get("definitions"); d.IsObject() {
		if err := json.Unmarshal([]byte(d.Raw), &defs); err != nil {
			server.Error(w, http.StatusBadRequest, fmt.Sprintf("Invalid definitions: %v", err))
			return
		}
	}

	cases, err := h.core.Generate(r.Context(), endpoints, defs)
	if err != nil {
		server.Error(w, http.StatusInternalServerError, "Failed to generate any test cases")
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"test_cases": cases})
}

func (h *Handler) generateSingle(w http.ResponseWriter, r *http.Request) {
	in, ok := body(w, r)
	if !ok {
		return
	}
	ep := in.Get("endpoint")
	if !ep.IsObject() {
		server.Error(w, http.StatusBadRequest, "No endpoint provided")
		return
	}
	var endpoint model.Endpoint
	if err := json.Unmarshal([]byte(ep.Raw), &endpoint); err != nil {
		server.Error(w, http.StatusBadRequest, fmt.Sprintf("Invalid endpoint data: %v", err))
		return
	}

	cases, err := h.core.GenerateSingle(r.Context(), endpoint)
	if err != nil {
		server.Error(w, http.StatusInternalServerError, "Failed to generate test cases for the specified endpoint")
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"test_cases": cases})
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	in, ok := body(w, r)
	if !ok {
		return
	}
	var cases []model.TestCase
	if tc := in.Get("test_cases"); tc.IsArray() {
		if err := json.Unmarshal([]byte(tc.Raw), &cases); err != nil {
			server.Error(w, http.StatusBadRequest, fmt.Sprintf("Invalid test cases: %v", err))
			return
		}
	}

	rep, err := h.core.Execute(r.Context(), cases)
	if errors.Is(err, ErrNoTestCases) {
		server.Error(w, http.StatusBadRequest, "No test cases provided")
		return
	}
	if err != nil {
		server.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	server.JSON(w, http.StatusOK, rep)
}

// download keeps each case as sent so that keys outside model.TestCase,
// such as merged results, reach the export untouched.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	in, ok := body(w, r)
	if !ok {
		return
	}
	var cases []json.RawMessage
	in.Get("test_cases").ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			cases = append(cases, json.RawMessage(v.Raw))
		}
		return true
	})
	if len(cases) == 0 {
		server.Error(w, http.StatusBadRequest, "No test cases provided for download.")
		return
	}

	var buf bytes.Buffer
	name, ctype := export.CSVFilename, "text/csv"
	var err error
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		name, ctype = export.XLSXFilename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.WriteXLSX(&buf, cases)
	} else {
		err = export.WriteCSV(&buf, cases)
	}
	if err != nil {
		h.logger.Error("failed to export test cases", zap.Error(err))
		server.Error(w, http.StatusInternalServerError, "Failed to export test cases")
		return
	}

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
