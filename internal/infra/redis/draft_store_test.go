package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
)

func TestDraftStoreRoundTripsAndExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewDraftStore(newClient(mr), time.Minute)
	ctx := context.Background()
	b := app.NewBuilder(app.NewSchema())

	st := b.Reduce(b.New("draft-1"), app.OpenQuestionDialog{})
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("assessment:draft:draft-1") {
		t.Fatalf("expected redis key to be set")
	}

	loaded, err := store.Load(ctx, "draft-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Dialog == nil || loaded.Dialog.Draft.Options == nil || loaded.Form.CompletionTime != 15 {
		t.Fatalf("unexpected draft %+v", loaded)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, "draft-1"); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Fatalf("expected expired draft, got %v", err)
	}
}

func TestDraftStoreDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewDraftStore(newClient(mr), time.Minute)
	ctx := context.Background()
	b := app.NewBuilder(app.NewSchema())

	_ = store.Save(ctx, b.New("draft-2"))
	if err := store.Delete(ctx, "draft-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("assessment:draft:draft-2") {
		t.Fatalf("expected redis key to be removed")
	}
}
