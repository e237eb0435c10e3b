package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
)

// Handler exposes the assessment use cases over HTTP.
type Handler struct {
	assessments *app.AssessmentService
	drafts      *app.BuilderService
	examinees   *app.ExamineeService
	ws          *WSHandler
}

func NewHandler(assessments *app.AssessmentService, drafts *app.BuilderService, examinees *app.ExamineeService) *Handler {
	return &Handler{
		assessments: assessments,
		drafts:      drafts,
		examinees:   examinees,
		ws:          NewWSHandler(drafts),
	}
}

// Routes registers every page, API and socket endpoint.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /assessment", h.redirectToList)
	mux.HandleFunc("GET /assessment/list", h.listPage)
	mux.HandleFunc("GET /assessment/detail/{id}", h.detailPage)
	mux.HandleFunc("GET /assessment/create", h.createPage)

	mux.HandleFunc("GET /api/assessments", h.listAssessments)
	mux.HandleFunc("POST /api/assessments/view", h.applyListAction)
	mux.HandleFunc("POST /api/assessments/bulk-delete", h.bulkDelete)
	mux.HandleFunc("GET /api/assessments/{id}", h.getAssessment)
	mux.HandleFunc("POST /api/assessments/{id}/status", h.changeStatus)
	mux.HandleFunc("DELETE /api/assessments/{id}", h.deleteAssessment)

	mux.HandleFunc("POST /api/drafts", h.startDraft)
	mux.HandleFunc("GET /api/drafts/{id}", h.getDraft)
	mux.HandleFunc("POST /api/drafts/{id}/actions", h.dispatchDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", h.discardDraft)

	mux.HandleFunc("GET /api/examinees", h.listExaminees)
	mux.HandleFunc("POST /api/examinees", h.registerExaminee)
	mux.HandleFunc("GET /api/examinees/{id}", h.getExaminee)

	mux.HandleFunc("/ws/drafts", h.ws.ServeWS)
	return mux
}

type actionEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type listResponse struct {
	State app.ListState `json:"state"`
	Page  app.ListPage  `json:"page"`
}

type viewRequest struct {
	State  app.ListState  `json:"state"`
	Action actionEnvelope `json:"action"`
}

func (h *Handler) listAssessments(w http.ResponseWriter, r *http.Request) {
	st, page, err := h.assessments.List(r.Context(), listStateFromQuery(r.URL.Query(), h.assessments.NewListState()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{State: st, Page: page})
}

func (h *Handler) applyListAction(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	action, err := app.DecodeListAction(req.Action.Type, req.Action.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	st, page, err := h.assessments.Apply(r.Context(), req.State, action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{State: st, Page: page})
}

func (h *Handler) getAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.assessments.Detail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status domain.Status `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.assessments.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) deleteAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.assessments.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	deleted, err := h.assessments.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"deleted": deleted})
}

func (h *Handler) startDraft(w http.ResponseWriter, r *http.Request) {
	st, err := h.drafts.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	st, err := h.drafts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) dispatchDraft(w http.ResponseWriter, r *http.Request) {
	var env actionEnvelope
	if !decodeBody(w, r, &env) {
		return
	}
	action, err := app.DecodeBuilderAction(env.Type, env.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.drafts.Dispatch(r.Context(), r.PathValue("id"), action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Discard(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listExaminees(w http.ResponseWriter, r *http.Request) {
	all, err := h.examinees.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handler) registerExaminee(w http.ResponseWriter, r *http.Request) {
	var in app.ExamineeInput
	if !decodeBody(w, r, &in) {
		return
	}
	e, err := h.examinees.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) getExaminee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.examinees.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// listStateFromQuery overlays the list query parameters on base.
func listStateFromQuery(q url.Values, base app.ListState) app.ListState {
	st := base
	st.Query = q.Get("q")
	if v := q.Get("status"); v != "" {
		st.Status = v
	}
	if v := q.Get("category"); v != "" {
		st.Category = v
	}
	if v := q.Get("date"); v != "" {
		st.DateRange = app.DateRange(v)
	}
	if v := q.Get("sort"); v != "" {
		st.SortField = app.SortField(v)
		st.SortDir = app.SortAsc
		if q.Get("dir") == string(app.SortDesc) {
			st.SortDir = app.SortDesc
		}
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		st.Page = page
	}
	return st
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorPayload{Message: "not found"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
		return false
	}
	return true
}

type errorPayload struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorPayload{Message: "validation failed", Fields: ve.Fields})
	case errors.Is(err, domain.ErrAssessmentNotFound),
		errors.Is(err, domain.ErrExamineeNotFound),
		errors.Is(err, domain.ErrDraftNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, errorPayload{Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSlugTaken),
		errors.Is(err, domain.ErrSubmissionInFlight):
		writeJSON(w, http.StatusConflict, errorPayload{Message: err.Error()})
	case errors.Is(err, domain.ErrUnknownAction), errors.Is(err, domain.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: err.Error()})
	default:
		log.Printf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorPayload{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
