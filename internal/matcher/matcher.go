// Package matcher routes generated test cases back to the endpoint that
// owns them. The generator only reports a concrete request path, so each
// endpoint's path template is turned into an anchored pattern.
package matcher

import (
	"regexp"
	"strings"

	"swagtest/internal/model"
	"swagtest/internal/session"
)

var paramRe = regexp.MustCompile(`\{[^}]+\}`)

const segment = `[^/]+`

type Template struct {
	Path string
	re   *regexp.Regexp
}

// Compile turns "/users/{id}/orders" into ^/users/[^/]+/orders$. Literal
// parts are quoted so "." or "+" in a path only match themselves.
func Compile(path string) (*Template, error) {
	var sb strings.Builder
	sb.WriteString("^")
	last := 0
	for _, loc := range paramRe.FindAllStringIndex(path, -1) {
		sb.WriteString(regexp.QuoteMeta(path[last:loc[0]]))
		sb.WriteString(segment)
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(path[last:]))
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	return &Template{Path: path, re: re}, nil
}

func MustCompile(path string) *Template {
	t, err := Compile(path)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) Match(path string) bool {
	return t.re.MatchString(path)
}

func (t *Template) String() string {
	return t.re.String()
}

// Owns reports whether tc was generated for ep: the concrete Endpoint must
// fit the template and the method must agree, ignoring case. A query
// string on the concrete path is not part of the match.
func (t *Template) Owns(ep model.Endpoint, tc model.TestCase) bool {
	path, _, _ := strings.Cut(tc.Endpoint, "?")
	return strings.EqualFold(tc.Method, ep.Method) && t.Match(path)
}

// Distribute assigns every case to each endpoint whose template and method
// it matches. Every endpoint gets an entry, possibly empty.
func Distribute(endpoints []model.Endpoint, cases []model.TestCase) (map[session.Key][]model.TestCase, error) {
	out := make(map[session.Key][]model.TestCase, len(endpoints))
	for _, ep := range endpoints {
		tpl, err := Compile(ep.Path)
		if err != nil {
			return nil, err
		}
		matched := []model.TestCase{}
		for _, tc := range cases {
			if tpl.Owns(ep, tc) {
				matched = append(matched, tc)
			}
		}
		out[session.KeyOf(ep)] = matched
	}
	return out, nil
}
