package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
	"psych-assessment-service/internal/infra/memory"
)

var serviceNow = time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)

func record(id int64, title string, status domain.Status, category domain.Category, age time.Duration) domain.AssessmentRecord {
	return domain.AssessmentRecord{
		ID:          id,
		Title:       title,
		Slug:        domain.Slugify(title),
		Description: "Professional psychological assessment for " + title,
		Status:      status,
		Settings:    domain.Settings{Category: category, Domains: []string{"Anxiety"}, CompletionTime: 20},
		CreatedAt:   serviceNow.Add(-age),
		UpdatedAt:   serviceNow.Add(-age),
	}
}

func newAssessmentService(recs ...domain.AssessmentRecord) (*app.AssessmentService, *memory.AssessmentStore) {
	store := memory.NewAssessmentStore()
	store.Seed(recs...)
	cache := memory.NewRecordCache(store, time.Minute)
	svc := app.NewAssessmentServiceWithClock(store, cache, memory.NewStaticAnalytics(), 5, func() time.Time { return serviceNow })
	return svc, store
}

func threeExamples() []domain.AssessmentRecord {
	day := 24 * time.Hour
	return []domain.AssessmentRecord{
		record(1, "Beck Depression Inventory", domain.StatusDraft, domain.CategoryClinical, 3*day),
		record(2, "Hamilton Anxiety Rating Scale", domain.StatusActive, domain.CategoryClinical, 20*day),
		record(3, "Cognitive Behavioral Assessment", domain.StatusCompleted, domain.CategoryBehavioral, 60*day),
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _ := newAssessmentService(threeExamples()...)
	ctx := context.Background()

	st, page, err := svc.Apply(ctx, svc.NewListState(), app.SetStatusFilter{Status: "active"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if st.Status != "active" || len(page.Items) != 1 || page.Items[0].Title != "Hamilton Anxiety Rating Scale" {
		t.Fatalf("expected only Hamilton, got %+v", page.Items)
	}
	if !page.HasActiveFilters || page.Total != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestListClampsRequestedPage(t *testing.T) {
	svc, _ := newAssessmentService(memory.FixtureRecords(serviceNow, 3)...)
	st := svc.NewListState()
	st.Page = 9

	st, page, err := svc.List(context.Background(), st)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if st.Page != 3 || page.Page != 3 || len(page.Items) != 2 || page.TotalPages != 3 {
		t.Fatalf("expected last page with 2 items, got state %d page %+v", st.Page, page)
	}
}

func TestDetailCombinesRecordAndAnalytics(t *testing.T) {
	svc, _ := newAssessmentService(memory.FixtureRecords(serviceNow, 3)...)

	detail, err := svc.Detail(context.Background(), 1)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Title != "Beck Depression Inventory (BDI-II)" || detail.Duration != 15 || len(detail.Questions) != 4 {
		t.Fatalf("unexpected detail %+v", detail.AssessmentSummary)
	}
	if len(detail.Analytics.Participants) != 5 || len(detail.Analytics.CompletionTrend) != 5 {
		t.Fatalf("unexpected analytics %+v", detail.Analytics)
	}

	if _, err := svc.Detail(context.Background(), 404); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChangeStatusFollowsLifecycle(t *testing.T) {
	svc, _ := newAssessmentService(threeExamples()...)
	ctx := context.Background()

	rec, err := svc.ChangeStatus(ctx, 1, domain.StatusActive)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if rec.Status != domain.StatusActive || !rec.UpdatedAt.Equal(serviceNow) {
		t.Fatalf("unexpected record %+v", rec)
	}

	if _, err := svc.ChangeStatus(ctx, 3, domain.StatusActive); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, 3, "paused"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := svc.Archive(ctx, 3); err != nil {
		t.Fatalf("archive: %v", err)
	}
	detail, err := svc.Detail(ctx, 3)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Status != domain.StatusArchived {
		t.Fatalf("expected cache invalidated after archive, got %s", detail.Status)
	}
	if _, err := svc.ChangeStatus(ctx, 3, domain.StatusDraft); err != nil {
		t.Fatalf("expected archived assessments to reopen as draft: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusDraft, domain.StatusScheduled, true},
		{domain.StatusScheduled, domain.StatusDraft, true},
		{domain.StatusActive, domain.StatusDraft, false},
		{domain.StatusCompleted, domain.StatusActive, false},
		{domain.StatusCompleted, domain.StatusArchived, true},
		{domain.StatusArchived, domain.StatusActive, false},
	}
	for _, tc := range cases {
		if got := app.CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v", tc.from, tc.to, tc.want)
		}
	}
}

func TestDeleteHidesAssessment(t *testing.T) {
	svc, _ := newAssessmentService(threeExamples()...)
	ctx := context.Background()

	if _, err := svc.Detail(ctx, 2); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := svc.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Detail(ctx, 2); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected deleted assessment gone, got %v", err)
	}
	_, page, _ := svc.List(ctx, svc.NewListState())
	if page.Total != 2 {
		t.Fatalf("expected 2 remaining, got %d", page.Total)
	}
}

func TestBulkDeleteSkipsUnknownIDs(t *testing.T) {
	svc, _ := newAssessmentService(threeExamples()...)

	deleted, err := svc.BulkDelete(context.Background(), []int64{1, 99, 3})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if !reflect.DeepEqual(deleted, []int64{1, 3}) {
		t.Fatalf("expected [1 3], got %v", deleted)
	}
	_, page, _ := svc.List(context.Background(), svc.NewListState())
	if page.Total != 1 || page.Items[0].ID != 2 {
		t.Fatalf("unexpected remaining items %+v", page.Items)
	}
}
