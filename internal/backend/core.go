// Package backend is the reference collaborator service: it extracts
// endpoints from Swagger 2.0 documents, generates test cases, runs them
// against the API under test and exports them.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/executor"
	"swagtest/internal/export"
	"swagtest/internal/generator"
	"swagtest/internal/model"
	"swagtest/internal/swagger"
)

const (
	DefaultBaseURL = "https://petstore.swagger.io/v2"
	ExtractTitle   = "Extracted Endpoints"
)

var (
	ErrNoEndpoints = errors.New("no endpoints found")
	ErrNoTestCases = errors.New("no test cases")
	ErrNothingMade = errors.New("no test cases generated")
)

type Options struct {
	// BaseURL is where generated cases are sent.
	BaseURL     string
	Concurrency int
	Timeout     time.Duration
}

// Core answers the collaborator calls in process. It satisfies
// console.Service, so front ends can run without a separate server.
type Core struct {
	fetch  *http.Client
	gen    *generator.Generator
	exec   *executor.Executor
	logger *zap.Logger
}

var _ console.Service = (*Core)(nil)

func NewCore(opts Options, logger *zap.Logger) *Core {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = executor.DefaultTimeout
	}
	return &Core{
		fetch: &http.Client{Timeout: timeout},
		gen:   generator.New(logger),
		exec: executor.New(executor.Options{
			BaseURL:     opts.BaseURL,
			Concurrency: opts.Concurrency,
			Timeout:     opts.Timeout,
		}, logger),
		logger: logger,
	}
}

func (c *Core) Extract(ctx context.Context, location string) (model.Extraction, error) {
	doc, err := swagger.Load(ctx, c.fetch, location)
	if err != nil {
		c.logger.Error("failed to load swagger document", zap.String("location", location), zap.Error(err))
		return model.Extraction{}, fmt.Errorf("load %s: %w", location, err)
	}
	x := doc.Extraction()
	if len(x.Endpoints) == 0 {
		return model.Extraction{}, ErrNoEndpoints
	}
	x.Title = ExtractTitle
	c.logger.Info("extracted endpoints", zap.String("location", location), zap.Int("endpoints", len(x.Endpoints)))
	return x, nil
}

func (c *Core) GenerateSingle(_ context.Context, ep model.Endpoint) ([]model.TestCase, error) {
	cases := c.gen.ForEndpoint(ep)
	if len(cases) == 0 {
		return nil, ErrNothingMade
	}
	return cases, nil
}

func (c *Core) Generate(_ context.Context, endpoints []model.Endpoint, defs model.Definitions) ([]model.TestCase, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	cases := c.gen.Generate(endpoints, defs)
	if len(cases) == 0 {
		return nil, ErrNothingMade
	}
	return cases, nil
}

func (c *Core) Execute(ctx context.Context, cases []model.TestCase) (model.Report, error) {
	if len(cases) == 0 {
		return model.Report{}, ErrNoTestCases
	}
	return c.exec.Run(ctx, cases), nil
}

// Download renders cases as CSV.
func (c *Core) Download(_ context.Context, cases []model.TestCase) ([]byte, error) {
	if len(cases) == 0 {
		return nil, ErrNoTestCases
	}
	rows, err := export.Cases(cases)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
