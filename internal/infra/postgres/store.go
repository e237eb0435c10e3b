package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"psych-assessment-service/internal/domain"
)

const (
	slugConstraint          = "assessments_slug_key"
	submissionKeyConstraint = "assessments_submission_key_key"
	maxSlugAttempts         = 50
)

// Store persists assessments and examinees. Writes go through bun; assessment
// reads go through the pgx RecordLoader.
type Store struct {
	db    *bun.DB
	reads *RecordLoader
}

func NewStore(db *bun.DB, reads *RecordLoader) *Store {
	return &Store{db: db, reads: reads}
}

// OpenBun opens a bun handle over pgdriver for dsn.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (s *Store) Create(ctx context.Context, rec domain.AssessmentRecord) (domain.AssessmentRecord, error) {
	if rec.SubmissionKey != "" {
		existing, err := s.bySubmissionKey(ctx, rec.SubmissionKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.AssessmentRecord{}, fmt.Errorf("lookup submission: %w", err)
		}
	}

	row := toAssessmentRow(rec)
	row.ID = 0
	base := rec.Slug
	for n := 1; n <= maxSlugAttempts; n++ {
		row.Slug = domain.SlugCandidate(base, n)
		_, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx)
		if err == nil {
			return row.record(), nil
		}
		switch violatedConstraint(err) {
		case slugConstraint:
			continue
		case submissionKeyConstraint:
			// a concurrent attempt with the same key won
			return s.bySubmissionKey(ctx, rec.SubmissionKey)
		}
		return domain.AssessmentRecord{}, fmt.Errorf("insert assessment: %w", err)
	}
	return domain.AssessmentRecord{}, fmt.Errorf("%w: %s", domain.ErrSlugTaken, base)
}

func (s *Store) bySubmissionKey(ctx context.Context, key string) (domain.AssessmentRecord, error) {
	row := new(assessmentRow)
	if err := s.db.NewSelect().Model(row).Where("submission_key = ?", key).Limit(1).Scan(ctx); err != nil {
		return domain.AssessmentRecord{}, err
	}
	return row.record(), nil
}

func violatedConstraint(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return pgErr.Field('n')
	}
	return ""
}

func (s *Store) Get(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	return s.reads.LoadRecord(ctx, id)
}

func (s *Store) ListSummaries(ctx context.Context) ([]domain.AssessmentSummary, error) {
	return s.reads.ListSummaries(ctx)
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*assessmentRow)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res)
}

func (s *Store) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*assessmentRow)(nil)).
		Set("deleted_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAssessmentNotFound
	}
	return nil
}

func (s *Store) CreateExaminee(ctx context.Context, e domain.Examinee) (domain.Examinee, error) {
	row := &examineeRow{
		UserID:          e.UserID,
		DateOfBirth:     e.DateOfBirth,
		Phone:           e.Phone,
		DemographicData: e.Demographics,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return domain.Examinee{}, fmt.Errorf("insert examinee: %w", err)
	}
	return row.examinee(), nil
}

func (s *Store) GetExaminee(ctx context.Context, id int64) (domain.Examinee, error) {
	row := new(examineeRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Examinee{}, domain.ErrExamineeNotFound
	}
	if err != nil {
		return domain.Examinee{}, fmt.Errorf("get examinee: %w", err)
	}
	return row.examinee(), nil
}

func (s *Store) ListExaminees(ctx context.Context) ([]domain.Examinee, error) {
	var rows []examineeRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list examinees: %w", err)
	}
	out := make([]domain.Examinee, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].examinee())
	}
	return out, nil
}
