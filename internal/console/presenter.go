package console

import (
	"swagtest/internal/model"
	"swagtest/internal/session"
)

// Display regions other than the per-endpoint sections.
const (
	RegionMain    = "results"
	RegionOverall = "overall"
)

// SectionRegion is the region holding ep's test cases or results.
func SectionRegion(ep model.Endpoint) string {
	return session.KeyOf(ep).SectionID()
}

type Tone string

const (
	ToneLoading Tone = "loading"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

type Action string

const (
	ActionGenerate Action = "generate"
	ActionExecute  Action = "execute"
	ActionBulk     Action = "bulk"
	ActionDownload Action = "download"
)

// Scope names the controls an operation disables while it runs. Endpoint
// is only set for the single-endpoint actions.
type Scope struct {
	Action   Action
	Endpoint model.Endpoint
}

func (s Scope) key() string {
	switch s.Action {
	case ActionGenerate, ActionExecute:
		return string(s.Action) + ":" + SectionRegion(s.Endpoint)
	default:
		return string(s.Action)
	}
}

// Presenter draws what the controller decides. Each call replaces the
// content of its target region.
type Presenter interface {
	Message(region string, tone Tone, text string)
	Endpoints(title string, endpoints []model.Endpoint)
	// Controls shows the search box and bulk actions when count > 0 and
	// hides them otherwise.
	Controls(count int)
	TestCases(ep model.Endpoint, cases []model.TestCase)
	Results(ep model.Endpoint, cases []model.TestCase, results map[string]model.TestResult)
	Summary(s model.Summary)
	Busy(s Scope)
	Idle(s Scope)
	Alert(text string)
	Save(filename string, data []byte) error
}
