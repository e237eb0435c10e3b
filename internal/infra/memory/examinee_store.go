package memory

import (
	"context"
	"sort"
	"sync"

	"psych-assessment-service/internal/domain"
)

// ExamineeStore is an in-memory implementation of app.ExamineeRepository.
type ExamineeStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Examinee
}

func NewExamineeStore() *ExamineeStore {
	return &ExamineeStore{nextID: 1, byID: make(map[int64]domain.Examinee)}
}

func (s *ExamineeStore) CreateExaminee(_ context.Context, e domain.Examinee) (domain.Examinee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.byID[e.ID] = e
	return e, nil
}

func (s *ExamineeStore) GetExaminee(_ context.Context, id int64) (domain.Examinee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return domain.Examinee{}, domain.ErrExamineeNotFound
	}
	return e, nil
}

func (s *ExamineeStore) ListExaminees(_ context.Context) ([]domain.Examinee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Examinee, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
