package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swagtest/internal/model"
)

func loaded() *State {
	s := New()
	s.Load(model.Extraction{
		Title: "Pets",
		Endpoints: []model.Endpoint{
			{Path: "/pets", Method: "GET"},
			{Path: "/pets", Method: "POST"},
			{Path: "/pets/{id}", Method: "GET"},
		},
	})
	return s
}

func TestSectionIDsDoNotCollide(t *testing.T) {
	pairs := []Key{
		NewKey("/a", "GET"),
		NewKey("/ab", "GET"),
		NewKey("/a", "BGET"),
		NewKey("/ab", "get"),
		NewKey("/a-b", "GET"),
		NewKey("/a", "b-GET"),
	}

	ids := map[string]Key{}
	for _, k := range pairs {
		id := k.SectionID()
		if prev, ok := ids[id]; ok && prev != k {
			t.Fatalf("section id %s shared by %v and %v", id, prev, k)
		}
		ids[id] = k
	}
	// "/ab" GET and "/ab" get are the same endpoint.
	assert.Len(t, ids, 5)
}

func TestSectionIDIsStableAndDOMSafe(t *testing.T) {
	k := NewKey("/users/{id}/orders", "delete")
	assert.Equal(t, k.SectionID(), NewKey("/users/{id}/orders", "DELETE").SectionID())
	assert.Regexp(t, `^ep-[0-9a-f]+$`, k.SectionID())
}

func TestFindIsCaseInsensitiveOnMethod(t *testing.T) {
	s := loaded()

	ep, ok := s.Find("/pets", "post")
	require.True(t, ok)
	assert.Equal(t, "POST", ep.Method)

	_, ok = s.Find("/PETS", "GET")
	assert.False(t, ok)
}

func TestBySection(t *testing.T) {
	s := loaded()
	ep, ok := s.BySection(NewKey("/pets/{id}", "GET").SectionID())
	require.True(t, ok)
	assert.Equal(t, "/pets/{id}", ep.Path)

	_, ok = s.BySection("ep-nope")
	assert.False(t, ok)
}

func TestStoreMergesAndReplaceCacheSwaps(t *testing.T) {
	s := loaded()
	get := NewKey("/pets", "GET")
	post := NewKey("/pets", "POST")

	s.Store(get, []model.TestCase{{Name: "a"}})
	s.Store(post, []model.TestCase{{Name: "b"}})
	assert.Equal(t, 2, s.CacheSize())

	s.Store(get, []model.TestCase{{Name: "a2"}})
	assert.Equal(t, []model.TestCase{{Name: "a2"}}, s.Cached(get))
	assert.Equal(t, []model.TestCase{{Name: "b"}}, s.Cached(post))

	s.ReplaceCache(map[Key][]model.TestCase{post: {{Name: "c"}}})
	assert.Empty(t, s.Cached(get))
	assert.Equal(t, 1, s.CacheSize())
}

func TestComplete(t *testing.T) {
	s := loaded()
	s.Store(NewKey("/pets", "GET"), []model.TestCase{{Name: "a"}})
	s.Store(NewKey("/pets", "POST"), []model.TestCase{{Name: "b"}})

	_, ok := s.Complete()
	assert.False(t, ok)

	s.Store(NewKey("/pets/{id}", "GET"), []model.TestCase{{Name: "c"}, {Name: "d"}})
	all, ok := s.Complete()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(all))

	s.Store(NewKey("/pets", "POST"), nil)
	_, ok = s.Complete()
	assert.False(t, ok)
}

func TestFlattenKeepsEndpointOrder(t *testing.T) {
	s := loaded()
	s.Store(NewKey("/pets/{id}", "GET"), []model.TestCase{{Name: "c"}})
	s.Store(NewKey("/pets", "GET"), []model.TestCase{{Name: "a"}})
	s.Store(NewKey("/gone", "GET"), []model.TestCase{{Name: "z"}})

	assert.Equal(t, []string{"a", "c", "z"}, names(s.Flatten()))
}

func TestTickets(t *testing.T) {
	s := loaded()

	first := s.Issue("overall")
	second := s.Issue("overall")
	other := s.Issue("ep-1")

	assert.False(t, s.Current(first))
	assert.True(t, s.Current(second))
	assert.True(t, s.Current(other))

	s.Reset()
	assert.False(t, s.Current(second))
	assert.False(t, s.Current(other))
	assert.True(t, s.Current(s.Issue("overall")))
}

func TestResetClearsCacheButKeepsEndpoints(t *testing.T) {
	s := loaded()
	s.Store(NewKey("/pets", "GET"), []model.TestCase{{Name: "a"}})
	s.Reset()
	assert.Zero(t, s.CacheSize())
	assert.Len(t, s.Endpoints(), 3)

	s.Unload()
	assert.Empty(t, s.Endpoints())
	assert.NotNil(t, s.Definitions())
}

func names(cases []model.TestCase) []string {
	out := make([]string, 0, len(cases))
	for _, tc := range cases {
		out = append(out, tc.Name)
	}
	return out
}
