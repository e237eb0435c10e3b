package app

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"psych-assessment-service/internal/domain"
)

func newTestBuilder() *Builder {
	b := NewBuilder(NewSchema())
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return b
}

func ptr[T any](v T) *T { return &v }

func validDraft(b *Builder) BuilderState {
	st := b.New("draft-1")
	st = b.Reduce(st, EditForm{Patch: FormPatch{
		Title:           ptr("Beck Depression Inventory (BDI-II)"),
		Description:     ptr("A 21-item self-report inventory measuring depression severity."),
		EthicalApproval: ptr(true),
	}})
	return b.Reduce(st, AddDomain{Name: "Depression"})
}

func TestSubmitWithoutEthicalApprovalAlwaysFails(t *testing.T) {
	b := newTestBuilder()
	st := validDraft(b)
	st = b.Reduce(st, EditForm{Patch: FormPatch{EthicalApproval: ptr(false)}})

	next := b.Reduce(st, Submit{})
	if next.Submission.Status != SubmissionIdle {
		t.Fatalf("expected submission to stay idle, got %s", next.Submission.Status)
	}
	if msg := next.Errors["ethicalApproval"]; msg != "Ethical approval must be confirmed" {
		t.Fatalf("expected ethicalApproval error, got %q (all: %v)", msg, next.Errors)
	}
	if len(next.Errors) != 1 {
		t.Fatalf("expected only the ethics error on an otherwise valid form, got %v", next.Errors)
	}

	empty := b.Reduce(b.New("draft-2"), Submit{})
	if _, ok := empty.Errors["ethicalApproval"]; !ok {
		t.Fatalf("expected ethicalApproval error on empty form, got %v", empty.Errors)
	}
}

func TestSubmitValidDraftGoesPending(t *testing.T) {
	b := newTestBuilder()
	st := b.Reduce(validDraft(b), Submit{})
	if st.Submission.Status != SubmissionPending || st.Submission.Attempts != 1 {
		t.Fatalf("expected pending first attempt, got %+v (errors %v)", st.Submission, st.Errors)
	}

	again := b.Reduce(st, Submit{})
	if again.Submission.Attempts != 1 {
		t.Fatalf("expected submit while pending to be ignored")
	}

	failed := b.Reduce(st, SubmitFailed{Message: "timeout", Retryable: true})
	if failed.Submission.Status != SubmissionFailed || !failed.Submission.Retryable {
		t.Fatalf("expected retryable failure, got %+v", failed.Submission)
	}
	retry := b.Reduce(failed, Submit{})
	if retry.Submission.Status != SubmissionPending || retry.Submission.Attempts != 2 {
		t.Fatalf("expected second pending attempt, got %+v", retry.Submission)
	}
	done := b.Reduce(retry, SubmitSucceeded{AssessmentID: 42})
	if done.Submission.Status != SubmissionSucceeded || done.Submission.AssessmentID != 42 || done.Submission.Error != "" {
		t.Fatalf("unexpected success state %+v", done.Submission)
	}
}

func TestSchemaFieldMessages(t *testing.T) {
	schema := NewSchema()
	form := DefaultForm()
	form.Title = "ab"
	form.Description = "short"
	form.CompletionTime = 181
	form.ClinicalMinScore = 50
	form.ClinicalMaxScore = 40
	form.ConsentContent = "ok"
	form.Category = "astrology"

	err := schema.Validate(form)
	ve, ok := err.(*domain.ValidationError)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]string{
		"title":            "Title must be at least 3 characters",
		"description":      "Description must be at least 10 characters",
		"category":         "Select a valid test type",
		"domains":          "At least one domain is required",
		"completionTime":   "Completion time must be between 1 and 180 minutes",
		"clinicalMaxScore": "Maximum score must exceed the minimum score",
		"consentContent":   "Consent content is required",
		"ethicalApproval":  "Ethical approval must be confirmed",
	}
	if !reflect.DeepEqual(ve.Fields, want) {
		t.Fatalf("unexpected field errors:\n got %v\nwant %v", ve.Fields, want)
	}
}

func TestEditFormClearsTouchedErrors(t *testing.T) {
	b := newTestBuilder()
	st := b.Reduce(b.New("draft"), Submit{})
	if _, ok := st.Errors["title"]; !ok {
		t.Fatalf("expected title error")
	}
	st = b.Reduce(st, EditForm{Patch: FormPatch{Title: ptr("Hamilton Anxiety Rating Scale")}})
	if _, ok := st.Errors["title"]; ok {
		t.Fatalf("expected title error cleared")
	}
	if _, ok := st.Errors["ethicalApproval"]; !ok {
		t.Fatalf("expected untouched errors to remain")
	}
}

func TestAddDomainTwiceKeepsOne(t *testing.T) {
	b := newTestBuilder()
	st := b.New("draft")
	st = b.Reduce(st, AddDomain{Name: "Mood"})
	st = b.Reduce(st, AddDomain{Name: "Mood"})
	st = b.Reduce(st, AddDomain{Name: "  "})
	if !reflect.DeepEqual(st.Domains, []string{"Mood"}) || st.Form.Domains != "Mood" {
		t.Fatalf("expected single Mood domain, got %v / %q", st.Domains, st.Form.Domains)
	}
}

func TestDomainEditsClearDomainError(t *testing.T) {
	b := newTestBuilder()
	st := b.Reduce(b.New("draft"), Submit{})
	if _, ok := st.Errors["domains"]; !ok {
		t.Fatalf("expected domains error")
	}
	st = b.Reduce(st, AddDomain{Name: "Stress"})
	st = b.Reduce(st, AddDomain{Name: "Mood"})
	if _, ok := st.Errors["domains"]; ok {
		t.Fatalf("expected domains error cleared on add")
	}
	st = b.Reduce(st, Submit{})
	st = b.Reduce(st, RemoveDomain{Name: "Stress"})
	if st.Form.Domains != "Mood" {
		t.Fatalf("expected joined domains Mood, got %q", st.Form.Domains)
	}
	if _, ok := st.Errors["domains"]; ok {
		t.Fatalf("expected domains error cleared on remove")
	}
}

func TestMultipleChoiceWithoutOptionsSaves(t *testing.T) {
	b := newTestBuilder()
	st := b.New("draft")
	st = b.Reduce(st, OpenQuestionDialog{})
	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{
		Text: ptr("Have you experienced changes in sleep?"),
		Type: ptr(domain.QuestionMultipleChoice),
	}})
	st = b.Reduce(st, SaveQuestion{})

	if st.Dialog != nil {
		t.Fatalf("expected dialog closed after save")
	}
	if len(st.Questions) != 1 {
		t.Fatalf("expected one question, got %d", len(st.Questions))
	}
	q := st.Questions[0]
	if q.ID != "id-1" || q.Options == nil || len(q.Options) != 0 || q.ScalePoints != nil {
		t.Fatalf("unexpected saved question %+v", q)
	}

	raw, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.Question
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Options == nil {
		t.Fatalf("expected empty options to survive serialization, got %s", raw)
	}
}

func TestSaveWithBlankTextKeepsDialogOpen(t *testing.T) {
	b := newTestBuilder()
	st := b.Reduce(b.New("draft"), OpenQuestionDialog{})
	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{Text: ptr("   ")}})
	st = b.Reduce(st, SaveQuestion{})
	if st.Dialog == nil || len(st.Questions) != 0 {
		t.Fatalf("expected no-op save, dialog=%v questions=%d", st.Dialog, len(st.Questions))
	}
}

func TestEditQuestionReplacesInPlace(t *testing.T) {
	b := newTestBuilder()
	st := b.New("draft")
	for _, text := range []string{"first", "second", "third"} {
		st = b.Reduce(st, OpenQuestionDialog{})
		st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{Text: ptr(text)}})
		st = b.Reduce(st, SaveQuestion{})
	}

	st = b.Reduce(st, OpenQuestionDialog{QuestionID: "id-2"})
	if st.Dialog == nil || st.Dialog.Draft.Text != "second" {
		t.Fatalf("expected dialog seeded from second question, got %+v", st.Dialog)
	}
	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{
		Text:        ptr("second, revised"),
		ScalePoints: ptr(7),
		RiskFlag:    ptr(true),
	}})
	st = b.Reduce(st, SaveQuestion{})

	if len(st.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(st.Questions))
	}
	got := []string{st.Questions[0].ID, st.Questions[1].ID, st.Questions[2].ID}
	if !reflect.DeepEqual(got, []string{"id-1", "id-2", "id-3"}) {
		t.Fatalf("expected order preserved, got %v", got)
	}
	q := st.Questions[1]
	if q.Text != "second, revised" || !q.RiskFlag || q.ScalePoints == nil || *q.ScalePoints != 7 {
		t.Fatalf("unexpected edited question %+v", q)
	}
}

func TestQuestionDraftTypeSpecificFields(t *testing.T) {
	b := newTestBuilder()
	st := b.Reduce(b.New("draft"), OpenQuestionDialog{})
	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{
		Text:          ptr("Rate your mood"),
		ScalePoints:   ptr(42),
		ScoringWeight: ptr(12.5),
	}})
	if *st.Dialog.Draft.ScalePoints != 10 || st.Dialog.Draft.ScoringWeight != 10 {
		t.Fatalf("expected clamped draft, got %+v", st.Dialog.Draft)
	}

	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{OptionInput: ptr(" Often ")}})
	st = b.Reduce(st, AddOption{})
	st = b.Reduce(st, AddOption{Text: "Often"})
	st = b.Reduce(st, AddOption{Text: "Never"})
	if !reflect.DeepEqual(st.Dialog.Draft.Options, []string{"Often", "Often", "Never"}) || st.Dialog.OptionInput != "" {
		t.Fatalf("unexpected options %v", st.Dialog.Draft.Options)
	}
	st = b.Reduce(st, RemoveOption{Index: 0})
	st = b.Reduce(st, RemoveOption{Index: 9})
	if !reflect.DeepEqual(st.Dialog.Draft.Options, []string{"Often", "Never"}) {
		t.Fatalf("unexpected options after remove %v", st.Dialog.Draft.Options)
	}

	st = b.Reduce(st, SaveQuestion{})
	q := st.Questions[0]
	if q.Options != nil || q.ScalePoints == nil || *q.ScalePoints != 10 {
		t.Fatalf("expected likert question without options, got %+v", q)
	}

	st = b.Reduce(st, OpenQuestionDialog{})
	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{
		Text: ptr("Describe any other symptoms"),
		Type: ptr(domain.QuestionOpenEnded),
	}})
	st = b.Reduce(st, SaveQuestion{})
	if q := st.Questions[1]; q.ScalePoints != nil || q.Options != nil {
		t.Fatalf("expected open-ended question without scale or options, got %+v", q)
	}
}

func TestRemoveQuestionAndCloseDialog(t *testing.T) {
	b := newTestBuilder()
	st := b.New("draft")
	for _, text := range []string{"a", "b"} {
		st = b.Reduce(st, OpenQuestionDialog{})
		st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{Text: ptr(text)}})
		st = b.Reduce(st, SaveQuestion{})
	}
	st = b.Reduce(st, RemoveQuestion{ID: "id-1"})
	if len(st.Questions) != 1 || st.Questions[0].ID != "id-2" {
		t.Fatalf("unexpected questions after remove %+v", st.Questions)
	}
	st = b.Reduce(st, OpenQuestionDialog{})
	st = b.Reduce(st, CloseQuestionDialog{})
	if st.Dialog != nil {
		t.Fatalf("expected dialog closed")
	}
}

func TestBuilderReduceLeavesPreviousStateIntact(t *testing.T) {
	b := newTestBuilder()
	before := b.Reduce(b.New("draft"), AddDomain{Name: "Mood"})
	_ = b.Reduce(before, AddDomain{Name: "Stress"})
	_ = b.Reduce(before, RemoveDomain{Name: "Mood"})
	if !reflect.DeepEqual(before.Domains, []string{"Mood"}) {
		t.Fatalf("previous state mutated: %v", before.Domains)
	}
}

func TestPayloadCombinesFormAndQuestions(t *testing.T) {
	b := newTestBuilder()
	st := validDraft(b)
	st = b.Reduce(st, OpenQuestionDialog{})
	st = b.Reduce(st, EditQuestionDraft{Patch: QuestionPatch{Text: ptr("How often do you feel down?")}})
	st = b.Reduce(st, SaveQuestion{})

	p := st.Payload()
	if p.DraftID != "draft-1" || len(p.Questions) != 1 || !reflect.DeepEqual(p.Domains, []string{"Depression"}) {
		t.Fatalf("unexpected payload %+v", p)
	}
	s := p.Settings()
	if s.Category != domain.CategoryClinical || s.CompletionTime != 15 || !s.EthicalApproval || len(s.Questions) != 1 {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestDecodeBuilderAction(t *testing.T) {
	action, err := DecodeBuilderAction("editForm", []byte(`{"patch":{"title":"PCL-5","completionTime":20}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	edit, ok := action.(EditForm)
	if !ok || *edit.Patch.Title != "PCL-5" || *edit.Patch.CompletionTime != 20 || edit.Patch.Description != nil {
		t.Fatalf("unexpected action %#v", action)
	}
	if _, err := DecodeBuilderAction("submissionSucceeded", []byte(`{"assessmentId":1}`)); err == nil {
		t.Fatalf("expected system events to be rejected")
	}
	if _, err := DecodeBuilderAction("addDomain", []byte(`{"name":`)); err == nil {
		t.Fatalf("expected malformed payload error")
	}
}
