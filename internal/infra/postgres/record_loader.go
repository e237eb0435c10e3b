package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"psych-assessment-service/internal/domain"
)

const recordColumns = `id, title, slug, description, created_by, status, settings, participant_count,
	COALESCE(submission_key, ''), scheduled_at, due_at, created_at, updated_at, deleted_at`

// RecordLoader reads assessment rows from Postgres through a pgx pool.
type RecordLoader struct {
	pool *pgxpool.Pool
}

func NewRecordLoader(pool *pgxpool.Pool) *RecordLoader {
	return &RecordLoader{pool: pool}
}

func (l *RecordLoader) LoadRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM assessments WHERE id=$1 AND deleted_at IS NULL`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssessmentRecord{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("load assessment %d: %w", id, err)
	}
	return rec, nil
}

// ListSummaries returns every live assessment in id order.
func (l *RecordLoader) ListSummaries(ctx context.Context) ([]domain.AssessmentSummary, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+recordColumns+` FROM assessments WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AssessmentSummary, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, rec.Summary())
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (domain.AssessmentRecord, error) {
	var (
		rec      domain.AssessmentRecord
		status   string
		settings []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Slug, &rec.Description, &rec.CreatedBy, &status, &settings,
		&rec.ParticipantCount, &rec.SubmissionKey, &rec.ScheduledAt, &rec.DueAt,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt,
	)
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	rec.Status = domain.Status(status)
	if rec.Settings, err = domain.DecodeSettings(settings); err != nil {
		return domain.AssessmentRecord{}, err
	}
	return rec, nil
}
