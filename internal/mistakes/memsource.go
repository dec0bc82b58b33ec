package mistakes

import (
	"context"
	"strings"
	"sync"
)

// MemSource is a development and test source holding candidates in memory.
type MemSource struct {
	mu   sync.RWMutex
	byID map[string][]Candidate // lowercased username -> candidates
}

func NewMemSource() *MemSource {
	return &MemSource{byID: make(map[string][]Candidate)}
}

func (m *MemSource) Add(username string, cands ...Candidate) {
	key := strings.ToLower(strings.TrimSpace(username))
	m.mu.Lock()
	m.byID[key] = append(m.byID[key], cands...)
	m.mu.Unlock()
}

func (m *MemSource) FetchMistakes(ctx context.Context, username string, limit int) ([]Candidate, error) {
	key := strings.ToLower(strings.TrimSpace(username))
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byID[key]
	if len(list) == 0 {
		return []Candidate{}, nil
	}
	items := append([]Candidate(nil), list...)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
