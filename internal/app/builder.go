package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"psych-assessment-service/internal/domain"
)

const defaultConsent = "I consent to participate in this psychological assessment. I understand that my responses will be kept confidential and used for clinical/research purposes only."

// FormState holds the builder fields across the basic, settings and ethics sections.
type FormState struct {
	Title                      string                      `json:"title" validate:"min=3,max=100"`
	Description                string                      `json:"description" validate:"min=10"`
	Category                   domain.Category             `json:"category" validate:"oneof=personality cognitive clinical behavioral"`
	Domains                    string                      `json:"domains" validate:"required"`
	AnonymousResponses         bool                        `json:"anonymousResponses"`
	ScoringMethodology         domain.ScoringMethodology   `json:"scoringMethodology" validate:"oneof=likert binary weighted"`
	CompletionTime             int                         `json:"completionTime" validate:"min=1,max=180"`
	ConfidentialityLevel       domain.ConfidentialityLevel `json:"confidentialityLevel" validate:"oneof=standard high critical"`
	ProfessionalInterpretation bool                        `json:"professionalInterpretation"`
	ClinicalMinScore           float64                     `json:"clinicalMinScore" validate:"min=0"`
	ClinicalMaxScore           float64                     `json:"clinicalMaxScore" validate:"min=1,gtfield=ClinicalMinScore"`
	RiskAssessmentEnabled      bool                        `json:"riskAssessmentEnabled"`
	ProfessionalGuidelines     string                      `json:"professionalGuidelines"`
	ConsentContent             string                      `json:"consentContent" validate:"min=20"`
	EthicalApproval            bool                        `json:"ethicalApproval" validate:"affirmed"`
}

// DefaultForm returns the values a new assessment starts from.
func DefaultForm() FormState {
	return FormState{
		Category:                   domain.CategoryClinical,
		AnonymousResponses:         true,
		ScoringMethodology:         domain.ScoringLikert,
		CompletionTime:             15,
		ConfidentialityLevel:       domain.ConfidentialityHigh,
		ProfessionalInterpretation: true,
		ClinicalMinScore:           0,
		ClinicalMaxScore:           100,
		RiskAssessmentEnabled:      true,
		ConsentContent:             defaultConsent,
	}
}

type SubmissionStatus string

const (
	SubmissionIdle      SubmissionStatus = "idle"
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// SubmissionState tracks the hand-off of a validated draft to the submission handler.
type SubmissionState struct {
	Status       SubmissionStatus `json:"status"`
	Attempts     int              `json:"attempts"`
	Error        string           `json:"error,omitempty"`
	Retryable    bool             `json:"retryable"`
	AssessmentID int64            `json:"assessmentId,omitempty"`
}

// BuilderState is the complete, serializable state of one assessment draft.
type BuilderState struct {
	ID         string            `json:"id"`
	Form       FormState         `json:"form"`
	Domains    []string          `json:"domains"`
	Questions  []domain.Question `json:"questions"`
	Dialog     *QuestionDialog   `json:"dialog,omitempty"`
	Errors     map[string]string `json:"errors"`
	Submission SubmissionState   `json:"submission"`
}

func (st BuilderState) clone() BuilderState {
	out := st
	out.Domains = append([]string{}, st.Domains...)
	out.Questions = make([]domain.Question, len(st.Questions))
	for i, q := range st.Questions {
		out.Questions[i] = cloneQuestion(q)
	}
	out.Errors = make(map[string]string, len(st.Errors))
	for k, v := range st.Errors {
		out.Errors[k] = v
	}
	if st.Dialog != nil {
		d := *st.Dialog
		d.Draft = cloneQuestion(st.Dialog.Draft)
		out.Dialog = &d
	}
	return out
}

func cloneQuestion(q domain.Question) domain.Question {
	if q.ScalePoints != nil {
		points := *q.ScalePoints
		q.ScalePoints = &points
	}
	if q.Options != nil {
		q.Options = append([]string{}, q.Options...)
	}
	return q
}

// Payload is the combined form and question list handed to the submission handler.
type Payload struct {
	DraftID   string            `json:"draftId"`
	Form      FormState         `json:"form"`
	Domains   []string          `json:"domains"`
	Questions []domain.Question `json:"questions"`
}

// Payload assembles the submission payload for the draft.
func (st BuilderState) Payload() Payload {
	c := st.clone()
	return Payload{DraftID: c.ID, Form: c.Form, Domains: c.Domains, Questions: c.Questions}
}

// Settings converts the payload into the persisted settings document.
func (p Payload) Settings() domain.Settings {
	return domain.Settings{
		Category:                   p.Form.Category,
		Domains:                    append([]string{}, p.Domains...),
		AnonymousResponses:         p.Form.AnonymousResponses,
		ScoringMethodology:         p.Form.ScoringMethodology,
		CompletionTime:             p.Form.CompletionTime,
		ConfidentialityLevel:       p.Form.ConfidentialityLevel,
		ProfessionalInterpretation: p.Form.ProfessionalInterpretation,
		ClinicalMinScore:           p.Form.ClinicalMinScore,
		ClinicalMaxScore:           p.Form.ClinicalMaxScore,
		RiskAssessmentEnabled:      p.Form.RiskAssessmentEnabled,
		ProfessionalGuidelines:     p.Form.ProfessionalGuidelines,
		ConsentContent:             p.Form.ConsentContent,
		EthicalApproval:            p.Form.EthicalApproval,
		Questions:                  append([]domain.Question{}, p.Questions...),
	}
}

// Builder runs the assessment builder state machine.
type Builder struct {
	schema *Schema
	newID  func() string
}

func NewBuilder(schema *Schema) *Builder {
	return &Builder{schema: schema, newID: uuid.NewString}
}

// New returns an empty draft with the default form values.
func (b *Builder) New(id string) BuilderState {
	if id == "" {
		id = b.newID()
	}
	return BuilderState{
		ID:         id,
		Form:       DefaultForm(),
		Domains:    []string{},
		Questions:  []domain.Question{},
		Errors:     map[string]string{},
		Submission: SubmissionState{Status: SubmissionIdle},
	}
}

// Reduce applies one action and returns the next state; st is left untouched.
func (b *Builder) Reduce(st BuilderState, action BuilderAction) BuilderState {
	return action.applyBuilder(b, st.clone())
}

// BuilderAction is one user or system event on a draft.
type BuilderAction interface {
	applyBuilder(b *Builder, st BuilderState) BuilderState
}

// FormPatch carries the form fields an edit touches; nil fields are left alone.
type FormPatch struct {
	Title                      *string                      `json:"title,omitempty"`
	Description                *string                      `json:"description,omitempty"`
	Category                   *domain.Category             `json:"category,omitempty"`
	AnonymousResponses         *bool                        `json:"anonymousResponses,omitempty"`
	ScoringMethodology         *domain.ScoringMethodology   `json:"scoringMethodology,omitempty"`
	CompletionTime             *int                         `json:"completionTime,omitempty"`
	ConfidentialityLevel       *domain.ConfidentialityLevel `json:"confidentialityLevel,omitempty"`
	ProfessionalInterpretation *bool                        `json:"professionalInterpretation,omitempty"`
	ClinicalMinScore           *float64                     `json:"clinicalMinScore,omitempty"`
	ClinicalMaxScore           *float64                     `json:"clinicalMaxScore,omitempty"`
	RiskAssessmentEnabled      *bool                        `json:"riskAssessmentEnabled,omitempty"`
	ProfessionalGuidelines     *string                      `json:"professionalGuidelines,omitempty"`
	ConsentContent             *string                      `json:"consentContent,omitempty"`
	EthicalApproval            *bool                        `json:"ethicalApproval,omitempty"`
}

// EditForm applies a patch and clears the errors of the fields it touches.
type EditForm struct {
	Patch FormPatch `json:"patch"`
}

func (a EditForm) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	p := a.Patch
	f := &st.Form
	touched := make([]string, 0, 4)
	set := func(name string, apply func()) {
		apply()
		touched = append(touched, name)
	}
	if p.Title != nil {
		set("title", func() { f.Title = *p.Title })
	}
	if p.Description != nil {
		set("description", func() { f.Description = *p.Description })
	}
	if p.Category != nil {
		set("category", func() { f.Category = *p.Category })
	}
	if p.AnonymousResponses != nil {
		set("anonymousResponses", func() { f.AnonymousResponses = *p.AnonymousResponses })
	}
	if p.ScoringMethodology != nil {
		set("scoringMethodology", func() { f.ScoringMethodology = *p.ScoringMethodology })
	}
	if p.CompletionTime != nil {
		set("completionTime", func() { f.CompletionTime = *p.CompletionTime })
	}
	if p.ConfidentialityLevel != nil {
		set("confidentialityLevel", func() { f.ConfidentialityLevel = *p.ConfidentialityLevel })
	}
	if p.ProfessionalInterpretation != nil {
		set("professionalInterpretation", func() { f.ProfessionalInterpretation = *p.ProfessionalInterpretation })
	}
	if p.ClinicalMinScore != nil {
		set("clinicalMinScore", func() { f.ClinicalMinScore = *p.ClinicalMinScore })
	}
	if p.ClinicalMaxScore != nil {
		set("clinicalMaxScore", func() { f.ClinicalMaxScore = *p.ClinicalMaxScore })
	}
	if p.RiskAssessmentEnabled != nil {
		set("riskAssessmentEnabled", func() { f.RiskAssessmentEnabled = *p.RiskAssessmentEnabled })
	}
	if p.ProfessionalGuidelines != nil {
		set("professionalGuidelines", func() { f.ProfessionalGuidelines = *p.ProfessionalGuidelines })
	}
	if p.ConsentContent != nil {
		set("consentContent", func() { f.ConsentContent = *p.ConsentContent })
	}
	if p.EthicalApproval != nil {
		set("ethicalApproval", func() { f.EthicalApproval = *p.EthicalApproval })
	}
	for _, name := range touched {
		delete(st.Errors, name)
	}
	return st
}

// AddDomain appends a domain tag; blank and duplicate tags are ignored.
type AddDomain struct {
	Name string `json:"name"`
}

func (a AddDomain) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return st
	}
	for _, existing := range st.Domains {
		if existing == name {
			return st
		}
	}
	st.Domains = append(st.Domains, name)
	st.Form.Domains = strings.Join(st.Domains, ",")
	delete(st.Errors, "domains")
	return st
}

type RemoveDomain struct {
	Name string `json:"name"`
}

func (a RemoveDomain) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	kept := st.Domains[:0]
	for _, existing := range st.Domains {
		if existing != a.Name {
			kept = append(kept, existing)
		}
	}
	st.Domains = kept
	st.Form.Domains = strings.Join(st.Domains, ",")
	delete(st.Errors, "domains")
	return st
}

// RemoveQuestion drops a question by id.
type RemoveQuestion struct {
	ID string `json:"id"`
}

func (a RemoveQuestion) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	kept := st.Questions[:0]
	for _, q := range st.Questions {
		if q.ID != a.ID {
			kept = append(kept, q)
		}
	}
	st.Questions = kept
	return st
}

// Submit validates the draft and, when valid, marks the submission pending.
type Submit struct{}

func (Submit) applyBuilder(b *Builder, st BuilderState) BuilderState {
	switch st.Submission.Status {
	case SubmissionPending, SubmissionSucceeded:
		return st
	}
	if err := b.schema.Validate(st.Form); err != nil {
		if ve, ok := err.(*domain.ValidationError); ok {
			st.Errors = ve.Fields
		}
		return st
	}
	st.Errors = map[string]string{}
	st.Submission = SubmissionState{
		Status:   SubmissionPending,
		Attempts: st.Submission.Attempts + 1,
	}
	return st
}

// SubmitSucceeded records the id the submission handler assigned.
type SubmitSucceeded struct {
	AssessmentID int64 `json:"assessmentId"`
}

func (a SubmitSucceeded) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	if st.Submission.Status != SubmissionPending {
		return st
	}
	st.Submission.Status = SubmissionSucceeded
	st.Submission.AssessmentID = a.AssessmentID
	st.Submission.Error = ""
	st.Submission.Retryable = false
	return st
}

// SubmitFailed records a handler failure; retryable failures allow Submit again.
type SubmitFailed struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (a SubmitFailed) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	if st.Submission.Status != SubmissionPending {
		return st
	}
	st.Submission.Status = SubmissionFailed
	st.Submission.Error = a.Message
	st.Submission.Retryable = a.Retryable
	return st
}

var builderActions = map[string]func(json.RawMessage) (BuilderAction, error){
	"editForm":            decodeAction[BuilderAction, EditForm],
	"addDomain":           decodeAction[BuilderAction, AddDomain],
	"removeDomain":        decodeAction[BuilderAction, RemoveDomain],
	"openQuestionDialog":  decodeAction[BuilderAction, OpenQuestionDialog],
	"editQuestionDraft":   decodeAction[BuilderAction, EditQuestionDraft],
	"addOption":           decodeAction[BuilderAction, AddOption],
	"removeOption":        decodeAction[BuilderAction, RemoveOption],
	"saveQuestion":        decodeAction[BuilderAction, SaveQuestion],
	"closeQuestionDialog": decodeAction[BuilderAction, CloseQuestionDialog],
	"removeQuestion":      decodeAction[BuilderAction, RemoveQuestion],
	"submit":              decodeAction[BuilderAction, Submit],
}

// DecodeBuilderAction builds a client action from a {type, payload} envelope.
// Submission outcomes are system events and cannot be sent by clients.
func DecodeBuilderAction(kind string, payload json.RawMessage) (BuilderAction, error) {
	decode, ok := builderActions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}
	return decode(payload)
}
