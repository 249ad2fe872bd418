// Package executor sends generated test cases to the API under test and
// grades the responses.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swagtest/internal/model"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 4

	// responses beyond this are cut off before grading
	maxBody = 1 << 20
)

type Options struct {
	BaseURL     string
	Concurrency int
	Timeout     time.Duration
}

type Executor struct {
	baseURL     string
	client      *http.Client
	concurrency int
	logger      *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Executor{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		client:      &http.Client{Timeout: opts.Timeout},
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

type RequestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// BuildRequest turns a case into the call it describes. The body is sent as
// JSON for every method but GET and HEAD.
func BuildRequest(baseURL string, tc model.TestCase) (RequestSpec, error) {
	method := strings.ToUpper(strings.TrimSpace(tc.Method))
	if method == "" {
		method = http.MethodGet
	}
	spec := RequestSpec{
		Method:  method,
		URL:     strings.TrimRight(baseURL, "/") + tc.Endpoint,
		Headers: map[string]string{},
	}
	for k, v := range tc.Headers {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			spec.Headers[k] = s
		} else {
			spec.Headers[k] = fmt.Sprint(v)
		}
	}

	if tc.RequestBody != nil && method != http.MethodGet && method != http.MethodHead {
		b, err := json.Marshal(tc.RequestBody)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("invalid json body: %w", err)
		}
		spec.Body = b
		if _, ok := spec.Headers["Content-Type"]; !ok {
			spec.Headers["Content-Type"] = "application/json"
		}
	}
	return spec, nil
}

type Result struct {
	StatusCode int
	Elapsed    time.Duration
	Body       []byte
}

func (e *Executor) Do(ctx context.Context, spec RequestSpec) (Result, error) {
	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return Result{}, err
	}
	for k, v := range spec.Headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, err
	}
	return Result{StatusCode: resp.StatusCode, Elapsed: elapsed, Body: b}, nil
}

// Run executes every case, at most e.concurrency at a time, and returns one
// result per case name plus the summary. Failed cases include errored ones.
func (e *Executor) Run(ctx context.Context, cases []model.TestCase) model.Report {
	start := time.Now()
	results := make([]model.TestResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, tc := range cases {
		g.Go(func() error {
			results[i] = e.run(gctx, tc)
			return nil
		})
	}
	_ = g.Wait()

	rep := model.Report{Results: make(map[string]model.TestResult, len(cases))}
	sum := model.Summary{TotalCases: len(cases)}
	for i, tc := range cases {
		rep.Results[tc.Name] = results[i]
		if results[i].Status == model.StatusPassed {
			sum.PassedCases++
		} else {
			sum.FailedCases++
		}
	}
	sum.TotalTime = time.Since(start).Seconds()
	rep.Summary = &sum

	e.logger.Info("executed test cases",
		zap.Int("total", sum.TotalCases), zap.Int("passed", sum.PassedCases), zap.Int("failed", sum.FailedCases),
		zap.Float64("seconds", sum.TotalTime))
	return rep
}

func (e *Executor) run(ctx context.Context, tc model.TestCase) model.TestResult {
	spec, err := BuildRequest(e.baseURL, tc)
	if err != nil {
		return model.TestResult{Status: model.StatusError, Error: err.Error()}
	}
	e.logger.Debug("executing test case", zap.String("name", tc.Name), zap.String("method", spec.Method), zap.String("url", spec.URL))

	res, err := e.Do(ctx, spec)
	if err != nil {
		e.logger.Error("test case errored", zap.String("name", tc.Name), zap.Error(err))
		return model.TestResult{Status: model.StatusError, Error: err.Error()}
	}

	expected := tc.ExpectedStatusCode
	if expected == 0 {
		expected = http.StatusOK
	}
	code := res.StatusCode
	secs := res.Elapsed.Seconds()
	out := model.TestResult{
		Status:             model.StatusPassed,
		ActualStatusCode:   &code,
		ResponseTime:       &secs,
		ActualResponseBody: responseBody(res.Body),
	}
	if code != expected {
		out.Status = model.StatusFailed
		e.logger.Warn("test case failed", zap.String("name", tc.Name), zap.Int("expected", expected), zap.Int("actual", code))
	} else {
		e.logger.Debug("test case passed", zap.String("name", tc.Name), zap.Int("status", code))
	}
	return out
}

// responseBody keeps JSON as is and wraps anything else as a JSON string.
func responseBody(b []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	s, _ := json.Marshal(string(b))
	return s
}
