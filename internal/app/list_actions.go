package app

import (
	"encoding/json"
	"fmt"
	"sort"

	"psych-assessment-service/internal/domain"
)

// ListAction is one user event on the list view.
type ListAction interface {
	applyList(e *ListEngine, st ListState) ListState
}

type SetQuery struct {
	Query string `json:"query"`
}

type SetStatusFilter struct {
	Status string `json:"status"`
}

type SetCategoryFilter struct {
	Category string `json:"category"`
}

type SetDateRange struct {
	Range DateRange `json:"range"`
}

// ToggleSort cycles the sort of a column: ascending, descending, unsorted.
type ToggleSort struct {
	Field SortField `json:"field"`
}

type SetPage struct {
	Page int `json:"page"`
}

type ToggleRow struct {
	ID int64 `json:"id"`
}

// ToggleVisible selects or deselects the rows of the current page only.
type ToggleVisible struct{}

type ClearSelection struct{}

type ClearFilters struct{}

func (a SetQuery) applyList(_ *ListEngine, st ListState) ListState {
	st.Query = a.Query
	st.Page = 1
	return st
}

func (a SetStatusFilter) applyList(_ *ListEngine, st ListState) ListState {
	st.Status = orAll(a.Status)
	st.Page = 1
	return st
}

func (a SetCategoryFilter) applyList(_ *ListEngine, st ListState) ListState {
	st.Category = orAll(a.Category)
	st.Page = 1
	return st
}

func (a SetDateRange) applyList(_ *ListEngine, st ListState) ListState {
	st.DateRange = a.Range
	if st.DateRange == "" {
		st.DateRange = DateAll
	}
	st.Page = 1
	return st
}

func (a ToggleSort) applyList(_ *ListEngine, st ListState) ListState {
	if !a.Field.valid() {
		return st
	}
	if st.SortField != a.Field {
		st.SortField, st.SortDir = a.Field, SortAsc
		return st
	}
	switch st.SortDir {
	case SortAsc:
		st.SortDir = SortDesc
	default:
		st.SortField, st.SortDir = SortNone, ""
	}
	return st
}

func (a SetPage) applyList(e *ListEngine, st ListState) ListState {
	total := len(e.Filtered(st))
	st.Page = clampPage(a.Page, pageCount(total, st.PageSize))
	return st
}

func (a ToggleRow) applyList(_ *ListEngine, st ListState) ListState {
	if st.IsSelected(a.ID) {
		st.Selected = without(st.Selected, a.ID)
	} else {
		st.Selected = with(st.Selected, a.ID)
	}
	return st
}

func (ToggleVisible) applyList(e *ListEngine, st ListState) ListState {
	visible := e.visibleIDs(st)
	if len(visible) == 0 {
		return st
	}
	all := true
	for _, id := range visible {
		if !st.IsSelected(id) {
			all = false
			break
		}
	}
	for _, id := range visible {
		if all {
			st.Selected = without(st.Selected, id)
		} else {
			st.Selected = with(st.Selected, id)
		}
	}
	return st
}

func (ClearSelection) applyList(_ *ListEngine, st ListState) ListState {
	st.Selected = []int64{}
	return st
}

func (ClearFilters) applyList(_ *ListEngine, st ListState) ListState {
	st.Query = ""
	st.Status = FilterAll
	st.Category = FilterAll
	st.DateRange = DateAll
	st.Page = 1
	return st
}

func orAll(v string) string {
	if v == "" {
		return FilterAll
	}
	return v
}

// with and without return fresh sorted slices so earlier states stay untouched.
func with(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	out = append(out, ids...)
	out = append(out, id)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func without(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

var listActions = map[string]func(json.RawMessage) (ListAction, error){
	"setQuery":          decodeAction[ListAction, SetQuery],
	"setStatusFilter":   decodeAction[ListAction, SetStatusFilter],
	"setCategoryFilter": decodeAction[ListAction, SetCategoryFilter],
	"setDateRange":      decodeAction[ListAction, SetDateRange],
	"toggleSort":        decodeAction[ListAction, ToggleSort],
	"setPage":           decodeAction[ListAction, SetPage],
	"toggleRow":         decodeAction[ListAction, ToggleRow],
	"toggleVisible":     decodeAction[ListAction, ToggleVisible],
	"clearSelection":    decodeAction[ListAction, ClearSelection],
	"clearFilters":      decodeAction[ListAction, ClearFilters],
}

// DecodeListAction builds a list action from a {type, payload} envelope.
func DecodeListAction(kind string, payload json.RawMessage) (ListAction, error) {
	decode, ok := listActions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}
	return decode(payload)
}

// decodeAction unmarshals payload into a concrete action A and returns it as I.
func decodeAction[I any, A any](payload json.RawMessage) (I, error) {
	var action A
	var zero I
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &action); err != nil {
			return zero, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}
	out, ok := any(action).(I)
	if !ok {
		return zero, fmt.Errorf("%T is not a valid action", action)
	}
	return out, nil
}
