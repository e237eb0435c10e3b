package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"psych-assessment-service/internal/domain"
)

// ExamineeRepository persists examinee profiles.
type ExamineeRepository interface {
	CreateExaminee(ctx context.Context, e domain.Examinee) (domain.Examinee, error)
	GetExaminee(ctx context.Context, id int64) (domain.Examinee, error)
	ListExaminees(ctx context.Context) ([]domain.Examinee, error)
}

// ExamineeInput is the registration form for an examinee.
type ExamineeInput struct {
	UserID       int64           `json:"userId" validate:"required"`
	DateOfBirth  string          `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Phone        string          `json:"phone" validate:"omitempty,max=32"`
	Demographics json.RawMessage `json:"demographics"`
}

type ExamineeService struct {
	repo   ExamineeRepository
	schema *Schema
	now    func() time.Time
}

func NewExamineeService(repo ExamineeRepository, schema *Schema) *ExamineeService {
	return &ExamineeService{repo: repo, schema: schema, now: time.Now}
}

// Register validates the input, decodes demographics strictly and stores the examinee.
func (s *ExamineeService) Register(ctx context.Context, in ExamineeInput) (domain.Examinee, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.schema.check(in); err != nil {
		return domain.Examinee{}, err
	}
	demographics, err := domain.DecodeDemographics(in.Demographics)
	if err != nil {
		return domain.Examinee{}, domain.NewValidationError("demographics", err.Error())
	}

	now := s.now()
	e := domain.Examinee{
		UserID:       in.UserID,
		Phone:        in.Phone,
		Demographics: demographics,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.DateOfBirth != "" {
		dob, _ := time.Parse(time.DateOnly, in.DateOfBirth)
		if dob.After(now) {
			return domain.Examinee{}, domain.NewValidationError("dateOfBirth", "Date of birth cannot be in the future")
		}
		e.DateOfBirth = &dob
	}
	return s.repo.CreateExaminee(ctx, e)
}

func (s *ExamineeService) Get(ctx context.Context, id int64) (domain.Examinee, error) {
	return s.repo.GetExaminee(ctx, id)
}

func (s *ExamineeService) List(ctx context.Context) ([]domain.Examinee, error) {
	return s.repo.ListExaminees(ctx)
}
