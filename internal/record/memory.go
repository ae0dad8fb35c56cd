package record

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process. Used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string]Record{}}
}

func (s *MemoryStore) Merge(_ context.Context, key Key, userID string, fields map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	r, ok := s.recs[key.lookup()]
	if !ok {
		r = Record{ID: uuid.NewString(), City: key.City, Country: key.Country, CreatedAt: now}
	}
	r.Fields = mergeFields(cloneFields(r.Fields), fields)
	r.UserID = userID
	r.UpdatedAt = now
	s.recs[key.lookup()] = r
	return clone(r), nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[key.lookup()]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return clone(r), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Record, error) {
	return s.list(func(r Record) bool { return r.UserID == userID }), nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Record, error) {
	return s.list(func(Record) bool { return true }), nil
}

func (s *MemoryStore) list(keep func(Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, r := range s.recs {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sortRecords(out)
	return out
}

func (s *MemoryStore) GetMany(ctx context.Context, keys []Key) ([]Record, error) {
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		r, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[key.lookup()]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.recs, key.lookup())
	return nil
}

func clone(r Record) Record {
	r.Fields = cloneFields(r.Fields)
	return r
}

func cloneFields(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Country != rs[j].Country {
			return rs[i].Country < rs[j].Country
		}
		return rs[i].City < rs[j].City
	})
}
