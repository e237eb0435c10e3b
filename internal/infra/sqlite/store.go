package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"psych-assessment-service/internal/domain"
)

//go:embed schema.sql
var schema string

const maxSlugAttempts = 50

const recordColumns = `id, title, slug, description, created_by, status, settings, participant_count,
	COALESCE(submission_key, ''), scheduled_at, due_at, created_at, updated_at, deleted_at`

// Store is a file-backed implementation of the assessment and examinee repositories.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
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

	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("marshal settings: %w", err)
	}
	base := rec.Slug
	for n := 1; n <= maxSlugAttempts; n++ {
		slug := domain.SlugCandidate(base, n)
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO assessments (title, slug, description, created_by, status, settings, participant_count,
				submission_key, scheduled_at, due_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Title, slug, rec.Description, rec.CreatedBy, string(rec.Status), string(settings), rec.ParticipantCount,
			nullString(rec.SubmissionKey), formatOptional(rec.ScheduledAt), formatOptional(rec.DueAt),
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
		)
		if err == nil {
			rec.ID, err = res.LastInsertId()
			if err != nil {
				return domain.AssessmentRecord{}, err
			}
			rec.Slug = slug
			rec.DeletedAt = nil
			return rec, nil
		}
		switch uniqueViolation(err) {
		case "assessments.slug":
			continue
		case "assessments.submission_key":
			return s.bySubmissionKey(ctx, rec.SubmissionKey)
		}
		return domain.AssessmentRecord{}, fmt.Errorf("insert assessment: %w", err)
	}
	return domain.AssessmentRecord{}, fmt.Errorf("%w: %s", domain.ErrSlugTaken, base)
}

// uniqueViolation returns the table.column named by a UNIQUE constraint failure.
func uniqueViolation(err error) string {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return ""
	}
	_, column, _ := strings.Cut(serr.Error(), "UNIQUE constraint failed: ")
	return strings.TrimSpace(column)
}

func (s *Store) bySubmissionKey(ctx context.Context, key string) (domain.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM assessments WHERE submission_key = ?`, key)
	return scanRecord(row)
}

func (s *Store) Get(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM assessments WHERE id = ? AND deleted_at IS NULL`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AssessmentRecord{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("load assessment %d: %w", id, err)
	}
	return rec, nil
}

// LoadRecord lets the store back a record cache.
func (s *Store) LoadRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	return s.Get(ctx, id)
}

func (s *Store) ListSummaries(ctx context.Context) ([]domain.AssessmentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM assessments WHERE deleted_at IS NULL ORDER BY id`)
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

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(status), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res)
}

func (s *Store) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		formatTime(at), formatTime(at), id)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.AssessmentRecord, error) {
	var (
		rec                     domain.AssessmentRecord
		status, settings        string
		created, updated        string
		scheduled, due, deleted sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Slug, &rec.Description, &rec.CreatedBy, &status, &settings,
		&rec.ParticipantCount, &rec.SubmissionKey, &scheduled, &due, &created, &updated, &deleted)
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	rec.Status = domain.Status(status)
	if rec.Settings, err = domain.DecodeSettings([]byte(settings)); err != nil {
		return domain.AssessmentRecord{}, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return domain.AssessmentRecord{}, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.AssessmentRecord{}, err
	}
	if rec.ScheduledAt, err = parseOptional(scheduled); err != nil {
		return domain.AssessmentRecord{}, err
	}
	if rec.DueAt, err = parseOptional(due); err != nil {
		return domain.AssessmentRecord{}, err
	}
	if rec.DeletedAt, err = parseOptional(deleted); err != nil {
		return domain.AssessmentRecord{}, err
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptional(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

func parseOptional(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
