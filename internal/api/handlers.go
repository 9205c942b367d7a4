// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"haven/internal/comment"
	"haven/internal/conventional"
	"haven/internal/diff"
	"haven/internal/errors"
	"haven/internal/logging"
	"haven/internal/render"
	"haven/internal/search"
	"haven/internal/snapshot"
	"haven/internal/validation"
	"haven/shared/types"

	"go.uber.org/zap"
)

// StaleHeader is set on responses served from the local snapshot.
const StaleHeader = "X-Haven-Stale"

// DiffSource serves diff documents, comments and commit listings,
// possibly from a snapshot.
type DiffSource interface {
	Document(ctx context.Context, commitID int) (*diff.Document, snapshot.Freshness, error)
	Comments(ctx context.Context, commitID int) ([]comment.ReviewComment, snapshot.Freshness, error)
	CreateComment(ctx context.Context, commitID int, d comment.Draft) (*comment.ReviewComment, error)
	Commits(ctx context.Context, q shared.CommitQuery) (*shared.Page[shared.CommitWithReview], snapshot.Freshness, error)
}

// Backend is reached directly for calls that have no offline copy.
type Backend interface {
	ListReviews(ctx context.Context, commitID int) ([]shared.CommitReview, error)
	CreateReview(ctx context.Context, commitID int, req shared.ReviewRequest) (*shared.CommitReview, error)
	Health(ctx context.Context) error
}

type Handler struct {
	source  DiffSource
	backend Backend
	logger  *logging.Logger
}

func NewHandler(source DiffSource, backend Backend, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{source: source, backend: backend, logger: logger}
}

// Routes registers every gateway endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/commits", h.ListCommits)
	mux.HandleFunc("GET /api/commits/{id}/render", h.Render)
	mux.HandleFunc("GET /api/commits/{id}/comments", h.ListComments)
	mux.HandleFunc("POST /api/commits/{id}/comments", h.CreateComment)
	mux.HandleFunc("GET /api/commits/{id}/reviews", h.ListReviews)
	mux.HandleFunc("POST /api/commits/{id}/reviews", h.CreateReview)
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// Health answers 200 while the gateway runs. An unreachable backend
// degrades it rather than failing it, since snapshots can still be
// served.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Backend: "ok"}
	if err := h.backend.Health(r.Context()); err != nil {
		resp = HealthResponse{Status: "degraded", Backend: "unreachable", Error: err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

type RenderResponse struct {
	render.View
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetched_at"`
	// CommentsError is set when the diff rendered but its comments could
	// not be loaded.
	CommentsError string `json:"comments_error,omitempty"`
}

func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := validation.CommitID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	mode, err := diff.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, r, errors.ValidationError(err.Error(), nil))
		return
	}

	doc, fresh, err := h.source.Document(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := RenderResponse{Stale: fresh.Stale, FetchedAt: fresh.FetchedAt}

	list, cfresh, err := h.source.Comments(r.Context(), id)
	if err != nil {
		h.logger.WithRequestID(r.Context()).Warn("loading comments failed",
			zap.Int("commit_id", id),
			zap.Error(err),
		)
		resp.CommentsError = err.Error()
	}
	resp.Stale = resp.Stale || cfresh.Stale

	resp.View = render.Build(*doc, mode, render.Options{Comments: comment.NewIndex(list)})
	if resp.Stale {
		w.Header().Set(StaleHeader, "true")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := validation.CommitID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list, fresh, err := h.source.Comments(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []comment.ReviewComment{}
	}
	if fresh.Stale {
		w.Header().Set(StaleHeader, "true")
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, err := validation.CommitID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	draft, err := validation.ValidateCommentRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.source.CreateComment(r.Context(), id, *draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.WithRequestID(r.Context()).Info("comment created",
		zap.Int("commit_id", id),
		zap.Int("comment_id", created.ID),
	)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := validation.CommitID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reviews, err := h.backend.ListReviews(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []shared.CommitReview{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, err := validation.CommitID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := validation.ValidateReviewRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.backend.CreateReview(r.Context(), id, *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.WithRequestID(r.Context()).Info("review recorded",
		zap.Int("commit_id", id),
		zap.Int("review_id", created.ID),
		zap.String("status", string(created.Status)),
	)
	writeJSON(w, http.StatusCreated, created)
}

// CommitRow is a listed commit with its parsed conventional header.
type CommitRow struct {
	shared.CommitWithReview
	Header conventional.Header `json:"header"`
	Tag    *conventional.Tag   `json:"tag,omitempty"`
	Score  int                 `json:"score,omitempty"`
}

type CommitsResponse struct {
	Items      []CommitRow `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// ListCommits forwards the backend's filters and, when q is given, ranks
// the returned page with fuzzy search.
func (h *Handler) ListCommits(w http.ResponseWriter, r *http.Request) {
	query, err := commitQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, fresh, err := h.source.Commits(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if fresh.Stale {
		w.Header().Set(StaleHeader, "true")
	}

	resp := CommitsResponse{
		Items:      make([]CommitRow, 0, len(page.Items)),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	for _, m := range search.Search(page.Items, r.URL.Query().Get("q")) {
		row := CommitRow{
			CommitWithReview: m.Commit,
			Header:           conventional.Parse(m.Commit.Message),
			Score:            m.Score,
		}
		if tag, ok := conventional.Lookup(row.Header.Type); ok {
			row.Tag = &tag
		}
		resp.Items = append(resp.Items, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

func commitQuery(r *http.Request) (shared.CommitQuery, error) {
	v := r.URL.Query()
	q := shared.CommitQuery{
		Search:      v.Get("search"),
		Author:      v.Get("author"),
		DateFrom:    v.Get("date_from"),
		DateTo:      v.Get("date_to"),
		Status:      v.Get("status"),
		Branch:      v.Get("branch"),
		WithReviews: v.Get("reviews") != "false",
	}

	var err error
	if q.RepositoryID, err = validation.PositiveInt(r, "repository_id", 0); err != nil {
		return q, err
	}
	if q.Page, err = validation.PositiveInt(r, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = validation.PositiveInt(r, "page_size", 20); err != nil {
		return q, err
	}
	if q.Status != "" && !shared.ReviewStatus(q.Status).Valid() {
		return q, errors.ValidationError("invalid query parameter", map[string]string{"status": q.Status})
	}
	for _, d := range []string{q.DateFrom, q.DateTo} {
		if _, _, err := search.ParseDate(d); err != nil {
			return q, errors.ValidationError(err.Error(), nil)
		}
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := errors.As(err)
	if !ok {
		e = errors.Internal("internal server error")
	}
	if e.Code >= 500 {
		h.logger.WithRequestID(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, e.Code, e)
}
