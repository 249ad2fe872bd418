package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swagtest/internal/model"
	"swagtest/internal/session"
)

func TestTemplateMatch(t *testing.T) {
	tests := []struct {
		template string
		path     string
		want     bool
	}{
		{"/users/{id}/orders", "/users/42/orders", true},
		{"/users/{id}/orders", "/users/abc-def/orders", true},
		{"/users/{id}/orders", "/users/42/99/orders", false},
		{"/users/{id}/orders", "/users//orders", false},
		{"/users/{id}/orders", "/users/42/orders/7", false},
		{"/users/{id}/orders", "/api/users/42/orders", false},
		{"/users/{id}", "/users/42", true},
		{"/users/{id}", "/users/42/", false},
		{"/users/{userId}/pets/{petId}", "/users/1/pets/2", true},
		{"/users/{userId}/pets/{petId}", "/users/1/pets", false},
		{"/pets", "/pets", true},
		{"/pets", "/petsX", false},
		{"/v1.0/pets", "/v1.0/pets", true},
		{"/v1.0/pets", "/v1x0/pets", false},
		{"/files/{name}.json", "/files/report.json", true},
		{"/broken/{id", "/broken/{id", true},
	}

	for _, tt := range tests {
		t.Run(tt.template+" "+tt.path, func(t *testing.T) {
			tpl, err := Compile(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tpl.Match(tt.path))
		})
	}
}

func TestCompiledPattern(t *testing.T) {
	assert.Equal(t, `^/users/[^/]+/orders$`, MustCompile("/users/{id}/orders").String())
}

func TestDistribute(t *testing.T) {
	endpoints := []model.Endpoint{
		{Path: "/pets", Method: "GET"},
		{Path: "/pets", Method: "post"},
		{Path: "/pets/{id}", Method: "GET"},
		{Path: "/stores", Method: "GET"},
	}
	cases := []model.TestCase{
		{Name: "list", Endpoint: "/pets", Method: "GET"},
		{Name: "list empty", Endpoint: "/pets", Method: "get"},
		{Name: "create", Endpoint: "/pets", Method: "POST"},
		{Name: "by id", Endpoint: "/pets/7", Method: "GET"},
		{Name: "deep", Endpoint: "/pets/7/toys", Method: "GET"},
		{Name: "delete", Endpoint: "/pets/7", Method: "DELETE"},
	}

	got, err := Distribute(endpoints, cases)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, []string{"list", "list empty"}, names(got[session.NewKey("/pets", "GET")]))
	assert.Equal(t, []string{"create"}, names(got[session.NewKey("/pets", "POST")]))
	assert.Equal(t, []string{"by id"}, names(got[session.NewKey("/pets/{id}", "GET")]))

	stores, ok := got[session.NewKey("/stores", "GET")]
	assert.True(t, ok)
	assert.Empty(t, stores)
}

func names(cases []model.TestCase) []string {
	out := make([]string, 0, len(cases))
	for _, tc := range cases {
		out = append(out, tc.Name)
	}
	return out
}

func TestOwnsIgnoresQuery(t *testing.T) {
	tpl := MustCompile("/pet/findByStatus")
	ep := model.Endpoint{Path: "/pet/findByStatus", Method: "GET"}

	assert.True(t, tpl.Owns(ep, model.TestCase{Endpoint: "/pet/findByStatus?status=available", Method: "get"}))
	assert.False(t, tpl.Owns(ep, model.TestCase{Endpoint: "/pet/findByStatus/x?status=available", Method: "GET"}))
	assert.False(t, tpl.Owns(ep, model.TestCase{Endpoint: "/pet/findByStatus", Method: "POST"}))
}
