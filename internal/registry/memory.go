package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"certproof/internal/models"
)

// InMemory is a process-local Registry used in tests and single-node dev
// setups. A single mutex makes check-then-insert atomic.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]models.CertificateRecord
	order   map[string]int
	seq     int
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[string]models.CertificateRecord),
		order:   make(map[string]int),
	}
}

func (s *InMemory) Register(ctx context.Context, rec models.CertificateRecord) (models.CertificateRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CertificateRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.HashKey]; exists {
		return models.CertificateRecord{}, ErrDuplicate
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.records[rec.HashKey] = rec
	s.order[rec.HashKey] = s.seq
	s.seq++
	return rec, nil
}

func (s *InMemory) Lookup(ctx context.Context, hashKey string) (models.CertificateRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CertificateRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[hashKey]
	if !ok {
		return models.CertificateRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemory) List(ctx context.Context, f Filter) ([]models.CertificateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type entry struct {
		seq int
		rec models.CertificateRecord
	}
	s.mu.RLock()
	entries := make([]entry, 0, len(s.records))
	for key, rec := range s.records {
		if matchesFilter(rec, f) {
			entries = append(entries, entry{seq: s.order[key], rec: rec})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	matched := make([]models.CertificateRecord, 0, len(entries))
	for _, e := range entries {
		matched = append(matched, e.rec)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if f.Offset >= len(matched) {
		return []models.CertificateRecord{}, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemory) Delete(ctx context.Context, hashKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[hashKey]; !ok {
		return ErrNotFound
	}
	delete(s.records, hashKey)
	delete(s.order, hashKey)
	return nil
}

func (s *InMemory) SetVerified(ctx context.Context, hashKey string, verified bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hashKey]
	if !ok {
		return ErrNotFound
	}
	rec.Verified = verified
	s.records[hashKey] = rec
	return nil
}

func matchesFilter(rec models.CertificateRecord, f Filter) bool {
	if f.Verified != nil && rec.Verified != *f.Verified {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	for _, v := range []string{rec.Fields.StudentName, rec.Fields.RollNumber, rec.Fields.Course} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}
