package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"psych-assessment-service/internal/domain"
)

// Submitter hands a validated draft to persistence and returns the new assessment id.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (int64, error)
}

// SubmitterConfig bounds a submission: each attempt gets Timeout, at most MaxAttempts attempts run,
// and the whole submission including backoff waits ends after Deadline.
type SubmitterConfig struct {
	Timeout         time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
	Deadline        time.Duration
}

func (c SubmitterConfig) withDefaults() SubmitterConfig {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 200 * time.Millisecond
	}
	if c.Deadline <= 0 {
		c.Deadline = 10 * time.Second
	}
	return c
}

// RepositorySubmitter stores submitted drafts as new assessments in draft status.
// The draft id doubles as the idempotency key, so a retried submission never creates a second row.
type RepositorySubmitter struct {
	repo   AssessmentRepository
	schema *Schema
	cfg    SubmitterConfig
	now    func() time.Time
}

func NewRepositorySubmitter(repo AssessmentRepository, schema *Schema, cfg SubmitterConfig) *RepositorySubmitter {
	return &RepositorySubmitter{repo: repo, schema: schema, cfg: cfg.withDefaults(), now: time.Now}
}

func (s *RepositorySubmitter) Submit(ctx context.Context, p Payload) (int64, error) {
	if err := s.schema.ValidatePayload(p); err != nil {
		return 0, err
	}
	rec := p.Record(s.now())

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	var id int64
	attempt := 0
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		created, err := s.repo.Create(actx, rec)
		if err != nil {
			if permanentSubmitError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		id = created.ID
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialInterval
	eb.MaxElapsedTime = s.cfg.Deadline
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.MaxAttempts-1)), ctx)
	notify := func(err error, wait time.Duration) {
		log.Printf("submission for draft %s failed on attempt %d: %v (retrying in %s)", p.DraftID, attempt, err, wait)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return 0, fmt.Errorf("submit draft %s: %w", p.DraftID, err)
	}
	return id, nil
}

func permanentSubmitError(err error) bool {
	return domain.IsValidation(err) || errors.Is(err, domain.ErrSlugTaken)
}

// Record converts the payload into a new draft-status assessment row.
func (p Payload) Record(now time.Time) domain.AssessmentRecord {
	title := strings.TrimSpace(p.Form.Title)
	return domain.AssessmentRecord{
		Title:         title,
		Slug:          domain.Slugify(title),
		Description:   strings.TrimSpace(p.Form.Description),
		Status:        domain.StatusDraft,
		Settings:      p.Settings(),
		SubmissionKey: p.DraftID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
