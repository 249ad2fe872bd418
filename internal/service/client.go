// Package service is the console's side of the collaborator contracts:
// endpoint extraction, test-case generation, execution and CSV export.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"swagtest/internal/model"
)

const (
	PathExtract        = "/extract_endpoints"
	PathGenerate       = "/generate_tests"
	PathGenerateSingle = "/generate_single_test"
	PathExecute        = "/execute_tests"
	PathDownload       = "/download_test_cases"
)

// StatusError is a non-2xx answer from the collaborator.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New returns a client for the collaborator at baseURL. A zero timeout
// leaves hang duration to the network stack.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) Extract(ctx context.Context, location string) (model.Extraction, error) {
	var out model.Extraction
	err := c.postJSON(ctx, "extract", PathExtract, map[string]string{"swagger_url": location}, &out)
	if out.Definitions == nil {
		out.Definitions = model.Definitions{}
	}
	return out, err
}

func (c *Client) GenerateSingle(ctx context.Context, ep model.Endpoint) ([]model.TestCase, error) {
	var out struct {
		TestCases []model.TestCase `json:"test_cases"`
	}
	err := c.postJSON(ctx, "generate_single_test", PathGenerateSingle, map[string]any{"endpoint": ep}, &out)
	return out.TestCases, err
}

func (c *Client) Generate(ctx context.Context, eps []model.Endpoint, defs model.Definitions) ([]model.TestCase, error) {
	if defs == nil {
		defs = model.Definitions{}
	}
	var out struct {
		TestCases []model.TestCase `json:"test_cases"`
	}
	err := c.postJSON(ctx, "generate_tests", PathGenerate, map[string]any{"endpoints": eps, "definitions": defs}, &out)
	return out.TestCases, err
}

func (c *Client) Execute(ctx context.Context, cases []model.TestCase) (model.Report, error) {
	var out model.Report
	err := c.postJSON(ctx, "execute_tests", PathExecute, map[string]any{"test_cases": cases}, &out)
	return out, err
}

// Download returns the exported file as sent by the collaborator.
func (c *Client) Download(ctx context.Context, cases []model.TestCase) ([]byte, error) {
	resp, err := c.post(ctx, "download_test_cases", PathDownload, map[string]any{"test_cases": cases})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download_test_cases: read body: %w", err)
	}
	return b, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	resp, err := c.post(ctx, op, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// post sends in as JSON and returns the response only when it is 2xx.
func (c *Client) post(ctx context.Context, op, path string, in any) (*http.Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("collaborator call failed", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("collaborator call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    errorMessage(b),
		}
	}
	return resp, nil
}

// errorMessage pulls {"error": "..."} out of a failure body, falling back to
// the body text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			if msg.IsObject() {
				return msg.Get("message").String()
			}
			return msg.String()
		}
	}
	return strings.TrimSpace(string(body))
}
