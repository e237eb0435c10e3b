package domain

import (
	"strconv"
	"strings"
	"time"
)

// Category groups assessments by the kind of construct they measure.
type Category string

const (
	CategoryPersonality Category = "personality"
	CategoryCognitive   Category = "cognitive"
	CategoryClinical    Category = "clinical"
	CategoryBehavioral  Category = "behavioral"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryPersonality, CategoryCognitive, CategoryClinical, CategoryBehavioral}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an assessment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{StatusDraft, StatusScheduled, StatusActive, StatusCompleted, StatusArchived}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// QuestionType is the response format of a question.
type QuestionType string

const (
	QuestionLikert               QuestionType = "likert"
	QuestionMultipleChoice       QuestionType = "multiple-choice"
	QuestionSemanticDifferential QuestionType = "semantic-differential"
	QuestionOpenEnded            QuestionType = "open-ended"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionLikert, QuestionMultipleChoice, QuestionSemanticDifferential, QuestionOpenEnded:
		return true
	}
	return false
}

// Question is one item of an assessment.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	ScalePoints   *int         `json:"scalePoints,omitempty"`
	Options       []string     `json:"options"`
	ScoringWeight float64      `json:"scoringWeight"`
	RiskFlag      bool         `json:"riskFlag"`
}

// AssessmentSummary is the row shape used by the list view.
type AssessmentSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Category     Category  `json:"category"`
	Status       Status    `json:"status"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	Description  string    `json:"description"`
	Domains      []string  `json:"domains"`
}

// AssessmentRecord mirrors the persisted assessment row.
type AssessmentRecord struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	CreatedBy        int64      `json:"createdBy"`
	Status           Status     `json:"status"`
	Settings         Settings   `json:"settings"`
	ParticipantCount int        `json:"participantCount"`
	SubmissionKey    string     `json:"submissionKey,omitempty"`
	ScheduledAt      *time.Time `json:"scheduledAt,omitempty"`
	DueAt            *time.Time `json:"dueAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
}

// Summary projects the record onto the list row shape.
func (r AssessmentRecord) Summary() AssessmentSummary {
	domains := r.Settings.Domains
	if domains == nil {
		domains = []string{}
	}
	return AssessmentSummary{
		ID:           r.ID,
		Title:        r.Title,
		Category:     r.Settings.Category,
		Status:       r.Status,
		Participants: r.ParticipantCount,
		CreatedAt:    r.CreatedAt,
		Description:  r.Description,
		Domains:      domains,
	}
}

// Slugify turns a title into a lowercase, dash separated slug.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Examinee is a person who may take assessments.
type Examinee struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"userId"`
	DateOfBirth  *time.Time   `json:"dateOfBirth,omitempty"`
	Phone        string       `json:"phone"`
	Demographics Demographics `json:"demographics"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ParticipantStatus tracks an examinee's progress through one assessment.
type ParticipantStatus string

const (
	ParticipantInvited    ParticipantStatus = "invited"
	ParticipantInProgress ParticipantStatus = "in-progress"
	ParticipantCompleted  ParticipantStatus = "completed"
	ParticipantExpired    ParticipantStatus = "expired"
)

// Participant is a row of the detail view's participant table.
type Participant struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Status       ParticipantStatus `json:"status"`
	Progress     int               `json:"progress"`
	LastActivity string            `json:"lastActivity,omitempty"`
	Score        *int              `json:"score,omitempty"`
}

type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

type DomainScore struct {
	Domain string `json:"domain"`
	Score  int    `json:"score"`
}

type TrendPoint struct {
	Label     string `json:"date"`
	Completed int    `json:"completed"`
}

// Analytics is the static reporting block shown on the detail view.
type Analytics struct {
	CompletionRate    float64       `json:"completionRate"`
	AverageScore      float64       `json:"averageScore"`
	AverageTime       float64       `json:"averageTime"`
	Participants      []Participant `json:"participants"`
	ScoreDistribution []ScoreBucket `json:"scoreDistribution"`
	DomainScores      []DomainScore `json:"domainScores"`
	CompletionTrend   []TrendPoint  `json:"completionTrend"`
}

// AssessmentDetail is everything the detail view renders.
type AssessmentDetail struct {
	AssessmentSummary
	Slug        string     `json:"slug"`
	Duration    int        `json:"duration"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Questions   []Question `json:"questions"`
	Analytics   Analytics  `json:"analytics"`
}

// SlugCandidate returns the n-th slug tried for base: base itself first, then base-2, base-3 and so on.
func SlugCandidate(base string, n int) string {
	if base == "" {
		base = "assessment"
	}
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
