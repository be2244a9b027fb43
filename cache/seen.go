package cache

import (
	"sync"

	"github.com/kochetovM/aimuzon/model"
)

// SeenSets tracks which video ids have already been surfaced, partitioned by
// scope. A scope is typically one query text, so repeat fetches for the same
// keyword never resurface a video, while the same video can still appear
// under a different keyword. Scopes live for the lifetime of the process.
type SeenSets struct {
	mu     sync.Mutex
	scopes map[string]map[string]struct{}
}

// NewSeenSets creates an empty registry.
func NewSeenSets() *SeenSets {
	return &SeenSets{scopes: make(map[string]map[string]struct{})}
}

// FilterNew removes items whose id was already recorded in scope, records the
// survivors, and returns them in their original order. The input slice is not
// modified. Duplicate ids within one call collapse to their first occurrence.
func (s *SeenSets) FilterNew(scope string, items []model.VideoItem) []model.VideoItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.scopes[scope]
	if !ok {
		set = make(map[string]struct{})
		s.scopes[scope] = set
	}

	out := make([]model.VideoItem, 0, len(items))
	for _, v := range items {
		if _, seen := set[v.VideoID]; seen {
			continue
		}
		set[v.VideoID] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Seen reports whether id was already recorded in scope.
func (s *SeenSets) Seen(scope, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scopes[scope][id]
	return ok
}

// Size reports how many ids are recorded in scope.
func (s *SeenSets) Size(scope string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scopes[scope])
}
