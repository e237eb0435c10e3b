package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"psych-assessment-service/internal/domain"
)

// DraftRepository abstracts where builder drafts live between requests (in-memory, Redis).
type DraftRepository interface {
	Save(ctx context.Context, st BuilderState) error
	Load(ctx context.Context, id string) (BuilderState, error)
	Delete(ctx context.Context, id string) error
}

// BuilderService runs builder actions against stored drafts.
// Dispatches on one draft are serialized; different drafts proceed independently.
type BuilderService struct {
	builder   *Builder
	drafts    DraftRepository
	submitter Submitter

	mu          sync.Mutex
	locks       map[string]*draftLock
	subscribers map[string]map[chan BuilderState]struct{}
}

type draftLock struct {
	mu   sync.Mutex
	refs int
}

func NewBuilderService(builder *Builder, drafts DraftRepository, submitter Submitter) *BuilderService {
	return &BuilderService{
		builder:     builder,
		drafts:      drafts,
		submitter:   submitter,
		locks:       make(map[string]*draftLock),
		subscribers: make(map[string]map[chan BuilderState]struct{}),
	}
}

// Start creates and stores a fresh draft.
func (s *BuilderService) Start(ctx context.Context) (BuilderState, error) {
	st := s.builder.New("")
	if err := s.drafts.Save(ctx, st); err != nil {
		return BuilderState{}, fmt.Errorf("save draft: %w", err)
	}
	return st, nil
}

func (s *BuilderService) Get(ctx context.Context, id string) (BuilderState, error) {
	return s.drafts.Load(ctx, id)
}

// Dispatch applies action to the draft. When the action starts a submission the
// submitter runs before Dispatch returns and its outcome is folded into the state.
func (s *BuilderService) Dispatch(ctx context.Context, id string, action BuilderAction) (BuilderState, error) {
	unlock := s.lock(id)
	defer unlock()

	st, err := s.drafts.Load(ctx, id)
	if err != nil {
		return BuilderState{}, err
	}
	if qid := referencedQuestion(action); qid != "" && !st.hasQuestion(qid) {
		return BuilderState{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, qid)
	}
	next := s.builder.Reduce(st, action)

	if st.Submission.Status != SubmissionPending && next.Submission.Status == SubmissionPending {
		if err := s.save(ctx, next); err != nil {
			return BuilderState{}, err
		}
		next = s.builder.Reduce(next, s.submit(ctx, next))
	}

	if err := s.save(ctx, next); err != nil {
		return BuilderState{}, err
	}
	return next, nil
}

// referencedQuestion returns the id of the existing question an action targets, if any.
func referencedQuestion(action BuilderAction) string {
	switch a := action.(type) {
	case OpenQuestionDialog:
		return a.QuestionID
	case RemoveQuestion:
		return a.ID
	}
	return ""
}

func (st BuilderState) hasQuestion(id string) bool {
	for _, q := range st.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

func (s *BuilderService) submit(ctx context.Context, st BuilderState) BuilderAction {
	id, err := s.submitter.Submit(ctx, st.Payload())
	if err != nil {
		log.Printf("draft %s submission failed: %v", st.ID, err)
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return SubmitFailed{Message: ve.Error(), Retryable: false}
		}
		return SubmitFailed{Message: err.Error(), Retryable: true}
	}
	return SubmitSucceeded{AssessmentID: id}
}

// Discard drops a draft. A draft with a submission in flight cannot be discarded.
func (s *BuilderService) Discard(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	st, err := s.drafts.Load(ctx, id)
	if err != nil {
		return err
	}
	if st.Submission.Status == SubmissionPending {
		return domain.ErrSubmissionInFlight
	}
	if err := s.drafts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	s.closeSubscribers(id)
	return nil
}

// Subscribe returns a channel that receives the draft's state after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *BuilderService) Subscribe(ctx context.Context, id string) (<-chan BuilderState, func(), error) {
	// held until the channel is registered so no dispatch slips between load and registration
	unlock := s.lock(id)
	defer unlock()

	st, err := s.drafts.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan BuilderState, 8)
	ch <- st

	s.mu.Lock()
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[chan BuilderState]struct{})
	}
	s.subscribers[id][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[id]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(s.subscribers, id)
		}
	}
	return ch, cancel, nil
}

func (s *BuilderService) save(ctx context.Context, st BuilderState) error {
	if err := s.drafts.Save(ctx, st); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	s.broadcast(st)
	return nil
}

func (s *BuilderService) broadcast(st BuilderState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers[st.ID] {
		select {
		case ch <- st:
		default:
			// slow subscriber: replace its oldest pending state
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

func (s *BuilderService) closeSubscribers(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers[id] {
		close(ch)
	}
	delete(s.subscribers, id)
}

func (s *BuilderService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &draftLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
