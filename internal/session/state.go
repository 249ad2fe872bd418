// Package session holds the page-lifetime state of one console: the
// extracted endpoints, their opaque schema definitions and the test cases
// generated so far.
package session

import (
	"sort"
	"sync"

	"swagtest/internal/model"
)

// Ticket marks one request against a display region. Only the latest ticket
// of a region may render into it.
type Ticket struct {
	Region string
	N      uint64
}

type State struct {
	mu sync.RWMutex

	title       string
	endpoints   []model.Endpoint
	definitions model.Definitions
	sections    map[string]Key
	cache       map[Key][]model.TestCase

	tickets map[string]uint64
	issued  uint64
}

func New() *State {
	return &State{
		sections: map[string]Key{},
		cache:    map[Key][]model.TestCase{},
		tickets:  map[string]uint64{},
	}
}

// Reset clears the cache and invalidates every outstanding ticket. Loaded
// endpoints stay until Load replaces them.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[Key][]model.TestCase{}
	s.tickets = map[string]uint64{}
}

// Load replaces the endpoint list and definitions in one step.
func (s *State) Load(x model.Extraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = x.Title
	s.endpoints = append([]model.Endpoint(nil), x.Endpoints...)
	s.definitions = x.Definitions
	if s.definitions == nil {
		s.definitions = model.Definitions{}
	}
	s.sections = make(map[string]Key, len(s.endpoints))
	for _, ep := range s.endpoints {
		k := KeyOf(ep)
		s.sections[k.SectionID()] = k
	}
}

// Unload drops the endpoint list, as after a failed extraction.
func (s *State) Unload() {
	s.Load(model.Extraction{})
}

func (s *State) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

func (s *State) Endpoints() []model.Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Endpoint(nil), s.endpoints...)
}

func (s *State) Definitions() model.Definitions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.definitions
}

// Find looks an endpoint up by exact path and case-insensitive method.
func (s *State) Find(path, method string) (model.Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ep := range s.endpoints {
		if ep.Same(path, method) {
			return ep, true
		}
	}
	return model.Endpoint{}, false
}

// BySection resolves a section identifier back to its endpoint.
func (s *State) BySection(id string) (model.Endpoint, bool) {
	s.mu.RLock()
	k, ok := s.sections[id]
	s.mu.RUnlock()
	if !ok {
		return model.Endpoint{}, false
	}
	return s.Find(k.Path, k.Method)
}

func (s *State) Cached(k Key) []model.TestCase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TestCase(nil), s.cache[k]...)
}

// Store sets one endpoint's entry, leaving the others alone.
func (s *State) Store(k Key, cases []model.TestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[k] = append([]model.TestCase{}, cases...)
}

// ReplaceCache swaps the whole cache for m.
func (s *State) ReplaceCache(m map[Key][]model.TestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[Key][]model.TestCase, len(m))
	for k, v := range m {
		s.cache[k] = append([]model.TestCase{}, v...)
	}
}

// CacheSize is the number of endpoints with an entry, empty or not.
func (s *State) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Complete returns every endpoint's cached cases in endpoint order, and
// false if any endpoint has none.
func (s *State) Complete() ([]model.TestCase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.endpoints) == 0 {
		return nil, false
	}
	var all []model.TestCase
	for _, ep := range s.endpoints {
		cases := s.cache[KeyOf(ep)]
		if len(cases) == 0 {
			return nil, false
		}
		all = append(all, cases...)
	}
	return all, true
}

// Flatten concatenates every cache entry: loaded endpoints first, in order,
// then any entry whose endpoint is no longer loaded.
func (s *State) Flatten() []model.TestCase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[Key]bool, len(s.cache))
	var all []model.TestCase
	for _, ep := range s.endpoints {
		k := KeyOf(ep)
		if seen[k] {
			continue
		}
		seen[k] = true
		all = append(all, s.cache[k]...)
	}

	var rest []Key
	for k := range s.cache {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].String() < rest[j].String() })
	for _, k := range rest {
		all = append(all, s.cache[k]...)
	}
	return all
}

// Issue hands out a new ticket for region, superseding older ones.
func (s *State) Issue(region string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.tickets[region] = s.issued
	return Ticket{Region: region, N: s.issued}
}

// Current reports whether t is still the latest ticket of its region.
func (s *State) Current(t Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets[t.Region] == t.N
}
