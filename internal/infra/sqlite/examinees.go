package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"psych-assessment-service/internal/domain"
)

func (s *Store) CreateExaminee(ctx context.Context, e domain.Examinee) (domain.Examinee, error) {
	demographics, err := json.Marshal(e.Demographics)
	if err != nil {
		return domain.Examinee{}, fmt.Errorf("marshal demographics: %w", err)
	}
	var dob any
	if e.DateOfBirth != nil {
		dob = e.DateOfBirth.Format(time.DateOnly)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO examinees (user_id, date_of_birth, phone, demographic_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, dob, e.Phone, string(demographics), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return domain.Examinee{}, fmt.Errorf("insert examinee: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return domain.Examinee{}, err
	}
	return e, nil
}

const examineeColumns = `id, user_id, date_of_birth, phone, demographic_data, created_at, updated_at`

func (s *Store) GetExaminee(ctx context.Context, id int64) (domain.Examinee, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examineeColumns+` FROM examinees WHERE id = ?`, id)
	e, err := scanExaminee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Examinee{}, domain.ErrExamineeNotFound
	}
	if err != nil {
		return domain.Examinee{}, fmt.Errorf("get examinee: %w", err)
	}
	return e, nil
}

func (s *Store) ListExaminees(ctx context.Context) ([]domain.Examinee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examineeColumns+` FROM examinees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list examinees: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Examinee, 0)
	for rows.Next() {
		e, err := scanExaminee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExaminee(row scanner) (domain.Examinee, error) {
	var (
		e                domain.Examinee
		dob              sql.NullString
		demographics     string
		created, updated string
	)
	if err := row.Scan(&e.ID, &e.UserID, &dob, &e.Phone, &demographics, &created, &updated); err != nil {
		return domain.Examinee{}, err
	}
	var err error
	if e.Demographics, err = domain.DecodeDemographics([]byte(demographics)); err != nil {
		return domain.Examinee{}, err
	}
	if dob.Valid {
		d, err := time.Parse(time.DateOnly, dob.String)
		if err != nil {
			return domain.Examinee{}, fmt.Errorf("parse date of birth: %w", err)
		}
		e.DateOfBirth = &d
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return domain.Examinee{}, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Examinee{}, err
	}
	return e, nil
}
