package model

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

const summaryKey = "summary"

// Report is the execute_tests payload: one result per test case name, flat
// in the same object as an optional "summary" entry.
type Report struct {
	Results map[string]TestResult
	Summary *Summary
}

func (r *Report) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("report is not valid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("report must be a json object")
	}

	r.Results = map[string]TestResult{}
	r.Summary = nil

	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == summaryKey {
			if !value.IsObject() {
				return true
			}
			var s Summary
			if err = json.Unmarshal([]byte(value.Raw), &s); err != nil {
				err = fmt.Errorf("summary: %w", err)
				return false
			}
			r.Summary = &s
			return true
		}
		if !value.IsObject() {
			return true
		}
		var res TestResult
		if err = json.Unmarshal([]byte(value.Raw), &res); err != nil {
			err = fmt.Errorf("result %q: %w", key.String(), err)
			return false
		}
		r.Results[key.String()] = res
		return true
	})
	return err
}

func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Results)+1)
	for name, res := range r.Results {
		out[name] = res
	}
	if r.Summary != nil {
		out[summaryKey] = r.Summary
	}
	return json.Marshal(out)
}

// For narrows the report down to the named cases. The summary is dropped.
func (r Report) For(cases []TestCase) map[string]TestResult {
	out := make(map[string]TestResult, len(cases))
	for _, tc := range cases {
		if res, ok := r.Results[tc.Name]; ok {
			out[tc.Name] = res
		}
	}
	return out
}
