package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
)

// DraftStore is an in-memory implementation of app.DraftRepository.
// Drafts are stored serialized so callers never share slices with the store.
// Idle drafts expire after ttl; a zero ttl keeps them forever.
type DraftStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.RWMutex
	drafts map[string]storedDraft
}

type storedDraft struct {
	raw       []byte
	expiresAt time.Time
}

func NewDraftStore(ttl time.Duration) *DraftStore {
	return &DraftStore{
		ttl:    ttl,
		clock:  time.Now,
		drafts: make(map[string]storedDraft),
	}
}

func (s *DraftStore) Save(_ context.Context, st app.BuilderState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	entry := storedDraft{raw: raw}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[st.ID] = entry
	return nil
}

func (s *DraftStore) Load(_ context.Context, id string) (app.BuilderState, error) {
	s.mu.RLock()
	entry, ok := s.drafts[id]
	s.mu.RUnlock()
	if !ok || s.expired(entry) {
		return app.BuilderState{}, domain.ErrDraftNotFound
	}
	var st app.BuilderState
	if err := json.Unmarshal(entry.raw, &st); err != nil {
		return app.BuilderState{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return st, nil
}

func (s *DraftStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

// Sweep drops expired drafts and reports how many were removed.
func (s *DraftStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.drafts {
		if s.expired(entry) {
			delete(s.drafts, id)
			removed++
		}
	}
	return removed
}

func (s *DraftStore) expired(entry storedDraft) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock())
}
