package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"psych-assessment-service/internal/domain"
)

// AssessmentRepository persists assessments (in-memory, SQLite, Postgres).
type AssessmentRepository interface {
	// Create inserts rec with a unique slug. A record with the same SubmissionKey is returned as is.
	Create(ctx context.Context, rec domain.AssessmentRecord) (domain.AssessmentRecord, error)
	Get(ctx context.Context, id int64) (domain.AssessmentRecord, error)
	ListSummaries(ctx context.Context) ([]domain.AssessmentSummary, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status, at time.Time) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

// RecordCache serves assessment records from a cache in front of the repository.
type RecordCache interface {
	GetRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error)
	Invalidate(ctx context.Context, id int64) error
}

// AnalyticsSource provides the reporting block of the detail view.
type AnalyticsSource interface {
	Analytics(ctx context.Context, rec domain.AssessmentRecord) (domain.Analytics, error)
}

var transitions = map[domain.Status][]domain.Status{
	domain.StatusDraft:     {domain.StatusScheduled, domain.StatusActive, domain.StatusArchived},
	domain.StatusScheduled: {domain.StatusDraft, domain.StatusActive, domain.StatusArchived},
	domain.StatusActive:    {domain.StatusCompleted, domain.StatusArchived},
	domain.StatusCompleted: {domain.StatusArchived},
	domain.StatusArchived:  {domain.StatusDraft},
}

// CanTransition reports whether an assessment may move from one status to another.
func CanTransition(from, to domain.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AssessmentService contains the list, detail and lifecycle use cases.
type AssessmentService struct {
	repo      AssessmentRepository
	records   RecordCache
	analytics AnalyticsSource
	pageSize  int
	now       func() time.Time
}

func NewAssessmentService(repo AssessmentRepository, records RecordCache, analytics AnalyticsSource, pageSize int) *AssessmentService {
	return NewAssessmentServiceWithClock(repo, records, analytics, pageSize, time.Now)
}

// NewAssessmentServiceWithClock is used by tests that depend on date filters.
func NewAssessmentServiceWithClock(repo AssessmentRepository, records RecordCache, analytics AnalyticsSource, pageSize int, now func() time.Time) *AssessmentService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &AssessmentService{repo: repo, records: records, analytics: analytics, pageSize: pageSize, now: now}
}

// NewListState returns the initial list state with the configured page size.
func (s *AssessmentService) NewListState() ListState {
	return NewListState(s.pageSize)
}

func (s *AssessmentService) engine(ctx context.Context) (*ListEngine, error) {
	items, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return NewListEngine(items, s.now), nil
}

// List renders the page for st. The returned state carries the clamped page number.
func (s *AssessmentService) List(ctx context.Context, st ListState) (ListState, ListPage, error) {
	engine, err := s.engine(ctx)
	if err != nil {
		return ListState{}, ListPage{}, err
	}
	st = st.normalized()
	page := engine.View(st)
	st.Page = page.Page
	return st, page, nil
}

// Apply reduces action over st against a fresh snapshot and renders the result.
func (s *AssessmentService) Apply(ctx context.Context, st ListState, action ListAction) (ListState, ListPage, error) {
	engine, err := s.engine(ctx)
	if err != nil {
		return ListState{}, ListPage{}, err
	}
	next := engine.Reduce(st, action)
	page := engine.View(next)
	next.Page = page.Page
	return next, page, nil
}

func (s *AssessmentService) Detail(ctx context.Context, id int64) (domain.AssessmentDetail, error) {
	rec, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return domain.AssessmentDetail{}, err
	}
	analytics, err := s.analytics.Analytics(ctx, rec)
	if err != nil {
		return domain.AssessmentDetail{}, fmt.Errorf("load analytics for %d: %w", id, err)
	}
	questions := rec.Settings.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return domain.AssessmentDetail{
		AssessmentSummary: rec.Summary(),
		Slug:              rec.Slug,
		Duration:          rec.Settings.CompletionTime,
		ScheduledAt:       rec.ScheduledAt,
		DueAt:             rec.DueAt,
		Questions:         questions,
		Analytics:         analytics,
	}, nil
}

// ChangeStatus moves an assessment through its lifecycle.
func (s *AssessmentService) ChangeStatus(ctx context.Context, id int64, to domain.Status) (domain.AssessmentRecord, error) {
	if !to.Valid() {
		return domain.AssessmentRecord{}, domain.NewValidationError("status", "Unknown status")
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	if rec.Status == to {
		return rec, nil
	}
	if !CanTransition(rec.Status, to) {
		return domain.AssessmentRecord{}, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, rec.Status, to)
	}
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, to, now); err != nil {
		return domain.AssessmentRecord{}, err
	}
	s.invalidate(ctx, id)
	rec.Status = to
	rec.UpdatedAt = now
	return rec, nil
}

func (s *AssessmentService) Archive(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	return s.ChangeStatus(ctx, id, domain.StatusArchived)
}

// Delete soft-deletes an assessment; it disappears from lists and lookups.
func (s *AssessmentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// BulkDelete soft-deletes every id and returns the ids actually deleted. Unknown ids are skipped.
func (s *AssessmentService) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	deleted := make([]int64, 0, len(ids))
	for _, id := range ids {
		err := s.Delete(ctx, id)
		if errors.Is(err, domain.ErrAssessmentNotFound) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("bulk delete %d: %w", id, err)
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (s *AssessmentService) invalidate(ctx context.Context, id int64) {
	// a failed invalidation leaves a stale entry until the cache TTL expires
	if err := s.records.Invalidate(ctx, id); err != nil {
		log.Printf("invalidate assessment %d: %v", id, err)
	}
}
