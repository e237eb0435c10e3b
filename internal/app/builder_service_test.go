package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
	"psych-assessment-service/internal/infra/memory"
)

func newBuilderService(submitter app.Submitter) *app.BuilderService {
	return app.NewBuilderService(app.NewBuilder(app.NewSchema()), memory.NewDraftStore(time.Hour), submitter)
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

func fillDraft(t *testing.T, svc *app.BuilderService, id string) {
	t.Helper()
	ctx := context.Background()
	actions := []app.BuilderAction{
		app.EditForm{Patch: app.FormPatch{
			Title:           strptr("Anxiety Sensitivity Index"),
			Description:     strptr("Measures fear of anxiety-related bodily sensations."),
			EthicalApproval: boolptr(true),
		}},
		app.AddDomain{Name: "Anxiety"},
	}
	for _, action := range actions {
		if _, err := svc.Dispatch(ctx, id, action); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
}

func TestDispatchSubmitPersistsAssessment(t *testing.T) {
	store := memory.NewAssessmentStore()
	svc := newBuilderService(app.NewRepositorySubmitter(store, app.NewSchema(), fastConfig()))
	ctx := context.Background()

	draft, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	fillDraft(t, svc, draft.ID)

	st, err := svc.Dispatch(ctx, draft.ID, app.Submit{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st.Submission.Status != app.SubmissionSucceeded || st.Submission.AssessmentID == 0 {
		t.Fatalf("expected success, got %+v (errors %v)", st.Submission, st.Errors)
	}
	rec, err := store.Get(ctx, st.Submission.AssessmentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Title != "Anxiety Sensitivity Index" || rec.SubmissionKey != draft.ID {
		t.Fatalf("unexpected record %+v", rec)
	}

	stored, err := svc.Get(ctx, draft.ID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if stored.Submission.Status != app.SubmissionSucceeded {
		t.Fatalf("expected stored draft to record success, got %s", stored.Submission.Status)
	}
}

func TestDispatchInvalidSubmitSkipsSubmitter(t *testing.T) {
	submitter := &stubSubmitter{}
	svc := newBuilderService(submitter)
	ctx := context.Background()

	draft, _ := svc.Start(ctx)
	st, err := svc.Dispatch(ctx, draft.ID, app.Submit{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitter.calls != 0 {
		t.Fatalf("expected submitter untouched")
	}
	if st.Submission.Status != app.SubmissionIdle || st.Errors["ethicalApproval"] == "" {
		t.Fatalf("expected field errors, got %+v", st)
	}
}

func TestDispatchFailedSubmissionCanRetry(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("connection refused")}
	svc := newBuilderService(submitter)
	ctx := context.Background()

	draft, _ := svc.Start(ctx)
	fillDraft(t, svc, draft.ID)

	st, _ := svc.Dispatch(ctx, draft.ID, app.Submit{})
	if st.Submission.Status != app.SubmissionFailed || !st.Submission.Retryable {
		t.Fatalf("expected retryable failure, got %+v", st.Submission)
	}

	submitter.err = nil
	submitter.id = 17
	st, _ = svc.Dispatch(ctx, draft.ID, app.Submit{})
	if st.Submission.Status != app.SubmissionSucceeded || st.Submission.AssessmentID != 17 || st.Submission.Attempts != 2 {
		t.Fatalf("expected success on retry, got %+v", st.Submission)
	}

	st, _ = svc.Dispatch(ctx, draft.ID, app.Submit{})
	if submitter.calls != 2 || st.Submission.Attempts != 2 {
		t.Fatalf("expected submit after success to be ignored, calls=%d", submitter.calls)
	}
}

func TestDispatchSerializesPerDraft(t *testing.T) {
	svc := newBuilderService(&stubSubmitter{})
	ctx := context.Background()
	draft, _ := svc.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Dispatch(ctx, draft.ID, app.AddDomain{Name: fmt.Sprintf("domain-%02d", i)}); err != nil {
				t.Errorf("dispatch: %v", err)
			}
		}(i)
	}
	wg.Wait()

	st, _ := svc.Get(ctx, draft.ID)
	if len(st.Domains) != 20 {
		t.Fatalf("expected 20 domains, lost updates: got %d", len(st.Domains))
	}
}

func TestSubscribeReceivesDraftUpdates(t *testing.T) {
	svc := newBuilderService(&stubSubmitter{})
	ctx := context.Background()
	draft, _ := svc.Start(ctx)

	ch, cancel, err := svc.Subscribe(ctx, draft.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-ch // initial snapshot

	if _, err := svc.Dispatch(ctx, draft.ID, app.AddDomain{Name: "Mood"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	update := <-ch
	if len(update.Domains) != 1 || update.Domains[0] != "Mood" {
		t.Fatalf("expected Mood update, got %+v", update.Domains)
	}
}

func TestSubscribeDoesNotMissConcurrentDispatch(t *testing.T) {
	drafts := &loadHookDrafts{DraftStore: memory.NewDraftStore(time.Hour)}
	svc := app.NewBuilderService(app.NewBuilder(app.NewSchema()), drafts, &stubSubmitter{})
	ctx := context.Background()
	draft, _ := svc.Start(ctx)

	dispatched := make(chan error, 1)
	drafts.arm(func() {
		go func() {
			_, err := svc.Dispatch(ctx, draft.ID, app.AddDomain{Name: "Mood"})
			dispatched <- err
		}()
		// give the dispatch a chance to run before the subscription registers
		time.Sleep(20 * time.Millisecond)
	})

	ch, cancel, err := svc.Subscribe(ctx, draft.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if err := <-dispatched; err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var last app.BuilderState
	timeout := time.After(time.Second)
	for len(last.Domains) == 0 {
		select {
		case last = <-ch:
		case <-timeout:
			t.Fatalf("subscriber never saw the concurrent dispatch")
		}
	}
	if last.Domains[0] != "Mood" {
		t.Fatalf("expected Mood, got %+v", last.Domains)
	}
}

// loadHookDrafts runs a hook once, inside the next Load after arm.
type loadHookDrafts struct {
	*memory.DraftStore
	mu   sync.Mutex
	hook func()
}

func (d *loadHookDrafts) arm(hook func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hook = hook
}

func (d *loadHookDrafts) Load(ctx context.Context, id string) (app.BuilderState, error) {
	st, err := d.DraftStore.Load(ctx, id)
	d.mu.Lock()
	hook := d.hook
	d.hook = nil
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return st, err
}

func TestDiscardRemovesDraft(t *testing.T) {
	svc := newBuilderService(&stubSubmitter{})
	ctx := context.Background()
	draft, _ := svc.Start(ctx)
	ch, _, _ := svc.Subscribe(ctx, draft.ID)
	<-ch

	if err := svc.Discard(ctx, draft.ID); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected subscription closed")
	}
	if _, err := svc.Dispatch(ctx, draft.ID, app.AddDomain{Name: "Mood"}); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Fatalf("expected draft not found, got %v", err)
	}
}

type stubSubmitter struct {
	mu    sync.Mutex
	id    int64
	err   error
	calls int
}

func (s *stubSubmitter) Submit(_ context.Context, _ app.Payload) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.id, s.err
}

func TestDispatchRejectsUnknownQuestion(t *testing.T) {
	svc := newBuilderService(&stubSubmitter{})
	ctx := context.Background()
	draft, _ := svc.Start(ctx)

	if _, err := svc.Dispatch(ctx, draft.ID, app.OpenQuestionDialog{QuestionID: "missing"}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := svc.Dispatch(ctx, draft.ID, app.RemoveQuestion{ID: "missing"}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := svc.Dispatch(ctx, draft.ID, app.OpenQuestionDialog{}); err != nil {
		t.Fatalf("expected new question dialog to open: %v", err)
	}
}
