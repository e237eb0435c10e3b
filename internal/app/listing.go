package app

import (
	"sort"
	"strings"
	"time"

	"psych-assessment-service/internal/domain"
)

// FilterAll disables the status and category filters.
const FilterAll = "all"

// DefaultPageSize is used when a ListState carries no page size.
const DefaultPageSize = 5

type SortField string

const (
	SortNone         SortField = ""
	SortTitle        SortField = "title"
	SortCategory     SortField = "category"
	SortStatus       SortField = "status"
	SortParticipants SortField = "participants"
	SortCreatedAt    SortField = "createdAt"
)

func (f SortField) valid() bool {
	switch f {
	case SortTitle, SortCategory, SortStatus, SortParticipants, SortCreatedAt:
		return true
	}
	return false
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// DateRange limits the list to assessments created within a number of days.
type DateRange string

const (
	DateAll     DateRange = "all"
	DateWeek    DateRange = "week"
	DateMonth   DateRange = "month"
	DateQuarter DateRange = "quarter"
)

func (r DateRange) maxDays() (int, bool) {
	switch r {
	case DateWeek:
		return 7, true
	case DateMonth:
		return 30, true
	case DateQuarter:
		return 90, true
	}
	return 0, false
}

// ListState is the complete, serializable state of the assessment list view.
type ListState struct {
	Query     string        `json:"query"`
	Status    string        `json:"status"`
	Category  string        `json:"category"`
	DateRange DateRange     `json:"dateRange"`
	SortField SortField     `json:"sortField,omitempty"`
	SortDir   SortDirection `json:"sortDirection,omitempty"`
	Page      int           `json:"page"`
	PageSize  int           `json:"pageSize"`
	Selected  []int64       `json:"selected"`
}

// NewListState returns the initial list state: no filters, unsorted, first page.
func NewListState(pageSize int) ListState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return ListState{
		Status:    FilterAll,
		Category:  FilterAll,
		DateRange: DateAll,
		Page:      1,
		PageSize:  pageSize,
		Selected:  []int64{},
	}
}

func (s ListState) normalized() ListState {
	if s.Status == "" {
		s.Status = FilterAll
	}
	if s.Category == "" {
		s.Category = FilterAll
	}
	if s.DateRange == "" {
		s.DateRange = DateAll
	}
	if !s.SortField.valid() || (s.SortDir != SortAsc && s.SortDir != SortDesc) {
		s.SortField, s.SortDir = SortNone, ""
	}
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}
	if s.Page < 1 {
		s.Page = 1
	}
	s.Selected = uniqueSorted(s.Selected)
	return s
}

// uniqueSorted copies ids into ascending order without duplicates.
func uniqueSorted(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	out = append(out, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

// HasActiveFilters reports whether any filter narrows the collection.
func (s ListState) HasActiveFilters() bool {
	s = s.normalized()
	return s.Query != "" || s.Status != FilterAll || s.Category != FilterAll || s.DateRange != DateAll
}

// IsSelected reports whether id is in the selection.
func (s ListState) IsSelected(id int64) bool {
	for _, selected := range s.Selected {
		if selected == id {
			return true
		}
	}
	return false
}

// ListPage is the derived output of the list view for one state.
type ListPage struct {
	Items              []domain.AssessmentSummary `json:"items"`
	Total              int                        `json:"total"`
	Page               int                        `json:"page"`
	PageSize           int                        `json:"pageSize"`
	TotalPages         int                        `json:"totalPages"`
	From               int                        `json:"from"`
	To                 int                        `json:"to"`
	HasActiveFilters   bool                       `json:"hasActiveFilters"`
	SelectedCount      int                        `json:"selectedCount"`
	AllVisibleSelected bool                       `json:"allVisibleSelected"`
}

// ListEngine derives list pages from a snapshot of summaries.
type ListEngine struct {
	items []domain.AssessmentSummary
	now   func() time.Time
}

func NewListEngine(items []domain.AssessmentSummary, now func() time.Time) *ListEngine {
	if now == nil {
		now = time.Now
	}
	return &ListEngine{items: items, now: now}
}

// Filtered returns every item that passes the filters of st, in sort order.
func (e *ListEngine) Filtered(st ListState) []domain.AssessmentSummary {
	st = st.normalized()
	now := e.now()
	query := strings.ToLower(st.Query)

	out := make([]domain.AssessmentSummary, 0, len(e.items))
	for _, item := range e.items {
		if matches(item, st, query, now) {
			out = append(out, item)
		}
	}

	if st.SortField != SortNone {
		desc := st.SortDir == SortDesc
		sort.SliceStable(out, func(i, j int) bool {
			c := compareBy(st.SortField, out[i], out[j])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out
}

// View returns the page of st, clamping the page number to the available range.
func (e *ListEngine) View(st ListState) ListPage {
	st = st.normalized()
	filtered := e.Filtered(st)
	totalPages := pageCount(len(filtered), st.PageSize)
	page := clampPage(st.Page, totalPages)

	start := (page - 1) * st.PageSize
	end := start + st.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	items := filtered[start:end]

	from := 0
	if len(items) > 0 {
		from = start + 1
	}
	return ListPage{
		Items:              items,
		Total:              len(filtered),
		Page:               page,
		PageSize:           st.PageSize,
		TotalPages:         totalPages,
		From:               from,
		To:                 end,
		HasActiveFilters:   st.HasActiveFilters(),
		SelectedCount:      len(st.Selected),
		AllVisibleSelected: len(items) > 0 && allSelected(st, items),
	}
}

// Reduce applies one action to st and returns the next state.
func (e *ListEngine) Reduce(st ListState, action ListAction) ListState {
	return action.applyList(e, st.normalized())
}

func (e *ListEngine) visibleIDs(st ListState) []int64 {
	page := e.View(st)
	ids := make([]int64, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func matches(item domain.AssessmentSummary, st ListState, query string, now time.Time) bool {
	if query != "" &&
		!strings.Contains(strings.ToLower(item.Title), query) &&
		!strings.Contains(strings.ToLower(item.Description), query) {
		return false
	}
	if st.Status != FilterAll && string(item.Status) != st.Status {
		return false
	}
	if st.Category != FilterAll && string(item.Category) != st.Category {
		return false
	}
	if maxDays, ok := st.DateRange.maxDays(); ok {
		days := int(now.Sub(item.CreatedAt) / (24 * time.Hour))
		if days > maxDays {
			return false
		}
	}
	return true
}

func compareBy(field SortField, a, b domain.AssessmentSummary) int {
	switch field {
	case SortTitle:
		return compareFold(a.Title, b.Title)
	case SortCategory:
		return compareFold(string(a.Category), string(b.Category))
	case SortStatus:
		return compareFold(string(a.Status), string(b.Status))
	case SortParticipants:
		return compareInt(a.Participants, b.Participants)
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func pageCount(total, size int) int {
	if total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

func allSelected(st ListState, items []domain.AssessmentSummary) bool {
	for _, item := range items {
		if !st.IsSelected(item.ID) {
			return false
		}
	}
	return true
}
