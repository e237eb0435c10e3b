package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"psych-assessment-service/internal/domain"
)

// AssessmentStore is an in-memory implementation of app.AssessmentRepository.
type AssessmentStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.AssessmentRecord
}

func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{nextID: 1, byID: make(map[int64]domain.AssessmentRecord)}
}

// Seed stores recs as given, keeping their ids when set.
func (s *AssessmentStore) Seed(recs ...domain.AssessmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if rec.ID == 0 {
			rec.ID = s.nextID
		}
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
		s.byID[rec.ID] = rec
	}
}

func (s *AssessmentStore) Create(_ context.Context, rec domain.AssessmentRecord) (domain.AssessmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.SubmissionKey != "" {
		for _, existing := range s.byID {
			if existing.SubmissionKey == rec.SubmissionKey {
				return existing, nil
			}
		}
	}

	base := rec.Slug
	for n := 1; ; n++ {
		candidate := domain.SlugCandidate(base, n)
		if !s.slugTakenLocked(candidate) {
			rec.Slug = candidate
			break
		}
	}

	rec.ID = s.nextID
	s.nextID++
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *AssessmentStore) slugTakenLocked(slug string) bool {
	for _, existing := range s.byID {
		if existing.Slug == slug {
			return true
		}
	}
	return false
}

func (s *AssessmentStore) Get(_ context.Context, id int64) (domain.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok || rec.DeletedAt != nil {
		return domain.AssessmentRecord{}, domain.ErrAssessmentNotFound
	}
	return rec, nil
}

// LoadRecord lets the store back a RecordCache.
func (s *AssessmentStore) LoadRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	return s.Get(ctx, id)
}

// ListSummaries returns live assessments in id order.
func (s *AssessmentStore) ListSummaries(_ context.Context) ([]domain.AssessmentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AssessmentSummary, 0, len(s.byID))
	for _, rec := range s.byID {
		if rec.DeletedAt == nil {
			out = append(out, rec.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *AssessmentStore) UpdateStatus(_ context.Context, id int64, status domain.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok || rec.DeletedAt != nil {
		return domain.ErrAssessmentNotFound
	}
	rec.Status = status
	rec.UpdatedAt = at
	s.byID[id] = rec
	return nil
}

func (s *AssessmentStore) SoftDelete(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok || rec.DeletedAt != nil {
		return domain.ErrAssessmentNotFound
	}
	rec.DeletedAt = &at
	rec.UpdatedAt = at
	s.byID[id] = rec
	return nil
}
