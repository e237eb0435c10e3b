package app

import (
	"strings"

	"psych-assessment-service/internal/domain"
)

const (
	minScalePoints     = 3
	maxScalePoints     = 10
	defaultScalePoints = 5
	maxScoringWeight   = 10
)

// QuestionDialog is the local draft of the question sub-form.
type QuestionDialog struct {
	EditingID   string          `json:"editingId,omitempty"`
	Draft       domain.Question `json:"draft"`
	OptionInput string          `json:"optionInput"`
}

func defaultQuestion() domain.Question {
	points := defaultScalePoints
	return domain.Question{
		Type:          domain.QuestionLikert,
		ScalePoints:   &points,
		Options:       []string{},
		ScoringWeight: 1,
	}
}

// OpenQuestionDialog opens the sub-form, seeded from QuestionID when it names an existing question.
type OpenQuestionDialog struct {
	QuestionID string `json:"questionId"`
}

func (a OpenQuestionDialog) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	if a.QuestionID == "" {
		st.Dialog = &QuestionDialog{Draft: defaultQuestion()}
		return st
	}
	for _, q := range st.Questions {
		if q.ID == a.QuestionID {
			draft := cloneQuestion(q)
			if draft.ScalePoints == nil {
				points := defaultScalePoints
				draft.ScalePoints = &points
			}
			if draft.Options == nil {
				draft.Options = []string{}
			}
			st.Dialog = &QuestionDialog{EditingID: q.ID, Draft: draft}
			return st
		}
	}
	return st
}

// QuestionPatch carries the dialog fields an edit touches.
type QuestionPatch struct {
	Text          *string              `json:"text,omitempty"`
	Type          *domain.QuestionType `json:"type,omitempty"`
	ScalePoints   *int                 `json:"scalePoints,omitempty"`
	ScoringWeight *float64             `json:"scoringWeight,omitempty"`
	RiskFlag      *bool                `json:"riskFlag,omitempty"`
	OptionInput   *string              `json:"optionInput,omitempty"`
}

type EditQuestionDraft struct {
	Patch QuestionPatch `json:"patch"`
}

func (a EditQuestionDraft) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	d := st.Dialog
	if d == nil {
		return st
	}
	p := a.Patch
	if p.Text != nil {
		d.Draft.Text = *p.Text
	}
	if p.Type != nil && p.Type.Valid() {
		d.Draft.Type = *p.Type
	}
	if p.ScalePoints != nil {
		points := clampInt(*p.ScalePoints, minScalePoints, maxScalePoints)
		d.Draft.ScalePoints = &points
	}
	if p.ScoringWeight != nil {
		d.Draft.ScoringWeight = clampFloat(*p.ScoringWeight, 0, maxScoringWeight)
	}
	if p.RiskFlag != nil {
		d.Draft.RiskFlag = *p.RiskFlag
	}
	if p.OptionInput != nil {
		d.OptionInput = *p.OptionInput
	}
	return st
}

// AddOption appends a response option; Text falls back to the dialog's option input.
type AddOption struct {
	Text string `json:"text"`
}

func (a AddOption) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	d := st.Dialog
	if d == nil {
		return st
	}
	text := a.Text
	if text == "" {
		text = d.OptionInput
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return st
	}
	d.Draft.Options = append(d.Draft.Options, text)
	d.OptionInput = ""
	return st
}

type RemoveOption struct {
	Index int `json:"index"`
}

func (a RemoveOption) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	d := st.Dialog
	if d == nil || a.Index < 0 || a.Index >= len(d.Draft.Options) {
		return st
	}
	d.Draft.Options = append(d.Draft.Options[:a.Index], d.Draft.Options[a.Index+1:]...)
	return st
}

// SaveQuestion commits the dialog draft. Blank text leaves the dialog open and changes nothing.
type SaveQuestion struct{}

func (SaveQuestion) applyBuilder(b *Builder, st BuilderState) BuilderState {
	d := st.Dialog
	if d == nil || strings.TrimSpace(d.Draft.Text) == "" {
		return st
	}
	q := normalizeQuestion(d.Draft)

	replaced := false
	if d.EditingID != "" {
		for i := range st.Questions {
			if st.Questions[i].ID == d.EditingID {
				q.ID = d.EditingID
				st.Questions[i] = q
				replaced = true
				break
			}
		}
	}
	if !replaced {
		q.ID = b.newID()
		st.Questions = append(st.Questions, q)
	}
	st.Dialog = nil
	return st
}

type CloseQuestionDialog struct{}

func (CloseQuestionDialog) applyBuilder(_ *Builder, st BuilderState) BuilderState {
	st.Dialog = nil
	return st
}

// normalizeQuestion keeps only the fields that apply to the question's type.
func normalizeQuestion(q domain.Question) domain.Question {
	q = cloneQuestion(q)
	q.Text = strings.TrimSpace(q.Text)
	switch q.Type {
	case domain.QuestionLikert:
		points := defaultScalePoints
		if q.ScalePoints != nil {
			points = clampInt(*q.ScalePoints, minScalePoints, maxScalePoints)
		}
		q.ScalePoints = &points
		q.Options = nil
	case domain.QuestionMultipleChoice:
		q.ScalePoints = nil
		if q.Options == nil {
			q.Options = []string{}
		}
	default:
		q.ScalePoints = nil
		q.Options = nil
	}
	return q
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
