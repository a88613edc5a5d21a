package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// JewelStore keeps jewels in memory keyed by source URL. Upserts for the
// same URL serialize on a per-URL lock; different URLs proceed in parallel.
type JewelStore struct {
	mu     sync.RWMutex
	byURL  map[string]pipeline.Jewel
	locks  map[string]*sync.Mutex
	lockMu sync.Mutex
}

// NewJewelStore constructs a JewelStore.
func NewJewelStore() *JewelStore {
	return &JewelStore{
		byURL: make(map[string]pipeline.Jewel),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *JewelStore) urlLock(url string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[url]
	if !ok {
		l = &sync.Mutex{}
		s.locks[url] = l
	}
	return l
}

// Upsert inserts the jewel or, when the source URL is already known,
// replaces the existing row while preserving its ID and CreatedAt.
func (s *JewelStore) Upsert(_ context.Context, jewel pipeline.Jewel) (pipeline.Jewel, bool, error) {
	lock := s.urlLock(jewel.SourceURL)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byURL[jewel.SourceURL]
	if ok {
		jewel.ID = existing.ID
		jewel.CreatedAt = existing.CreatedAt
	}
	s.byURL[jewel.SourceURL] = jewel
	return jewel, !ok, nil
}

// ListJewels filters and paginates, newest first.
func (s *JewelStore) ListJewels(_ context.Context, filter pipeline.JewelFilter) (pipeline.JewelPage, error) {
	s.mu.RLock()
	var matched []pipeline.Jewel
	for _, j := range s.byURL {
		if matches(j, filter) {
			matched = append(matched, j)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, k int) bool {
		return matched[i].UpdatedAt.After(matched[k].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	page := pipeline.JewelPage{
		Total:  len(matched),
		Limit:  limit,
		Offset: offset,
	}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[offset:end]
	}
	return page, nil
}

func matches(j pipeline.Jewel, f pipeline.JewelFilter) bool {
	if f.Vibe != "" && !strings.EqualFold(j.Vibe, f.Vibe) {
		return false
	}
	if f.Metal != "" && !strings.Contains(strings.ToLower(j.Metal), strings.ToLower(f.Metal)) {
		return false
	}
	if f.JewelType != "" && !strings.EqualFold(j.JewelType, f.JewelType) {
		return false
	}
	return true
}
