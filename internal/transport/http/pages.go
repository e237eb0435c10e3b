package http

import (
	"encoding/json"
	"html/template"
	"log"
	"net/http"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
)

// Page is the Inertia page object handed to the client-side router.
type Page struct {
	Component string `json:"component"`
	Props     any    `json:"props"`
	URL       string `json:"url"`
}

type listPageProps struct {
	State   app.ListState `json:"state"`
	Page    app.ListPage  `json:"page"`
	Filters filterOptions `json:"filters"`
}

type filterOptions struct {
	Statuses   []domain.Status   `json:"statuses"`
	Categories []domain.Category `json:"categories"`
	DateRanges []app.DateRange   `json:"dateRanges"`
}

type createPageProps struct {
	Draft   app.BuilderState `json:"draft"`
	Options builderOptions   `json:"options"`
}

type builderOptions struct {
	Categories            []domain.Category             `json:"categories"`
	ScoringMethodologies  []domain.ScoringMethodology   `json:"scoringMethodologies"`
	ConfidentialityLevels []domain.ConfidentialityLevel `json:"confidentialityLevels"`
	QuestionTypes         []domain.QuestionType         `json:"questionTypes"`
}

var listFilters = filterOptions{
	Statuses:   domain.Statuses,
	Categories: domain.Categories,
	DateRanges: []app.DateRange{app.DateAll, app.DateWeek, app.DateMonth, app.DateQuarter},
}

var createOptions = builderOptions{
	Categories:            domain.Categories,
	ScoringMethodologies:  []domain.ScoringMethodology{domain.ScoringLikert, domain.ScoringBinary, domain.ScoringWeighted},
	ConfidentialityLevels: []domain.ConfidentialityLevel{domain.ConfidentialityStandard, domain.ConfidentialityHigh, domain.ConfidentialityCritical},
	QuestionTypes: []domain.QuestionType{
		domain.QuestionLikert,
		domain.QuestionMultipleChoice,
		domain.QuestionSemanticDifferential,
		domain.QuestionOpenEnded,
	},
}

var shell = template.Must(template.New("app").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Assessments</title>
</head>
<body>
<div id="app" data-page="{{.}}"></div>
</body>
</html>
`))

func (h *Handler) redirectToList(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/assessment/list", http.StatusFound)
}

func (h *Handler) listPage(w http.ResponseWriter, r *http.Request) {
	st, page, err := h.assessments.List(r.Context(), listStateFromQuery(r.URL.Query(), h.assessments.NewListState()))
	if err != nil {
		writeError(w, err)
		return
	}
	render(w, r, "assessments/list/page", listPageProps{State: st, Page: page, Filters: listFilters})
}

func (h *Handler) detailPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.assessments.Detail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	render(w, r, "assessments/detail/page", map[string]any{"assessment": detail})
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	draft, err := h.drafts.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	render(w, r, "assessments/create/page", createPageProps{Draft: draft, Options: createOptions})
}

// render answers Inertia visits with the page object and first loads with the HTML shell.
func render(w http.ResponseWriter, r *http.Request, component string, props any) {
	page := Page{Component: component, Props: props, URL: r.URL.RequestURI()}
	if r.Header.Get("X-Inertia") != "" {
		w.Header().Set("X-Inertia", "true")
		w.Header().Set("Vary", "X-Inertia")
		writeJSON(w, http.StatusOK, page)
		return
	}

	data, err := json.Marshal(page)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Vary", "X-Inertia")
	if err := shell.Execute(w, string(data)); err != nil {
		log.Printf("render %s: %v", component, err)
	}
}
