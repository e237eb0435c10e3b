package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"psych-assessment-service/internal/domain"
)

type assessmentRow struct {
	bun.BaseModel `bun:"table:assessments,alias:a"`

	ID               int64           `bun:"id,pk,autoincrement"`
	Title            string          `bun:"title,notnull"`
	Slug             string          `bun:"slug,notnull"`
	Description      string          `bun:"description,notnull"`
	CreatedBy        int64           `bun:"created_by,notnull"`
	Status           string          `bun:"status,notnull"`
	Settings         domain.Settings `bun:"settings,type:jsonb,notnull"`
	ParticipantCount int             `bun:"participant_count,notnull"`
	SubmissionKey    string          `bun:"submission_key,nullzero"`
	ScheduledAt      *time.Time      `bun:"scheduled_at"`
	DueAt            *time.Time      `bun:"due_at"`
	CreatedAt        time.Time       `bun:"created_at,notnull"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull"`
	DeletedAt        *time.Time      `bun:"deleted_at"`
}

func toAssessmentRow(rec domain.AssessmentRecord) *assessmentRow {
	return &assessmentRow{
		ID:               rec.ID,
		Title:            rec.Title,
		Slug:             rec.Slug,
		Description:      rec.Description,
		CreatedBy:        rec.CreatedBy,
		Status:           string(rec.Status),
		Settings:         rec.Settings,
		ParticipantCount: rec.ParticipantCount,
		SubmissionKey:    rec.SubmissionKey,
		ScheduledAt:      rec.ScheduledAt,
		DueAt:            rec.DueAt,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		DeletedAt:        rec.DeletedAt,
	}
}

func (r *assessmentRow) record() domain.AssessmentRecord {
	return domain.AssessmentRecord{
		ID:               r.ID,
		Title:            r.Title,
		Slug:             r.Slug,
		Description:      r.Description,
		CreatedBy:        r.CreatedBy,
		Status:           domain.Status(r.Status),
		Settings:         r.Settings,
		ParticipantCount: r.ParticipantCount,
		SubmissionKey:    r.SubmissionKey,
		ScheduledAt:      r.ScheduledAt,
		DueAt:            r.DueAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		DeletedAt:        r.DeletedAt,
	}
}

type examineeRow struct {
	bun.BaseModel `bun:"table:examinees,alias:e"`

	ID              int64               `bun:"id,pk,autoincrement"`
	UserID          int64               `bun:"user_id,notnull"`
	DateOfBirth     *time.Time          `bun:"date_of_birth,type:date"`
	Phone           string              `bun:"phone,notnull"`
	DemographicData domain.Demographics `bun:"demographic_data,type:jsonb,notnull"`
	CreatedAt       time.Time           `bun:"created_at,notnull"`
	UpdatedAt       time.Time           `bun:"updated_at,notnull"`
}

func (r *examineeRow) examinee() domain.Examinee {
	return domain.Examinee{
		ID:           r.ID,
		UserID:       r.UserID,
		DateOfBirth:  r.DateOfBirth,
		Phone:        r.Phone,
		Demographics: r.DemographicData,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
