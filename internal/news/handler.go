package news

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// MaxLatestLimit caps the limit accepted by GET /articles/latest.
const MaxLatestLimit = 100

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrArticleNotFound, Status: http.StatusNotFound, Message: "article not found"},
	{Error: ErrForbidden, Status: http.StatusForbidden},
}

// Handler handles HTTP requests for the news module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new news handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterPublicRoutes registers read-only article routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/articles", h.ListArticles)
	r.Get("/articles/latest", h.ListLatest)
	r.Get("/articles/{id}", h.GetArticle)
}

// RegisterRoutes registers routes that require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/articles", h.CreateArticle)
	r.Put("/articles/{id}", h.UpdateArticle)
	r.Delete("/articles/{id}", h.DeleteArticle)
	r.Get("/articles/{id}/permissions", h.GetPermissions)
}

// ArticleRequest represents the request body for creating or updating an
// article. AuthorID is honoured for administrators only.
type ArticleRequest struct {
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ImageURL    string     `json:"image_url"`
	PublishedAt *time.Time `json:"published_at"`
	AuthorID    string     `json:"author_id" validate:"omitempty,uuid"`
}

// ToDomain converts the request to a domain model.
func (r *ArticleRequest) ToDomain() *domain.Article {
	article := &domain.Article{
		Title:    r.Title,
		Body:     r.Body,
		ImageURL: r.ImageURL,
	}
	if r.PublishedAt != nil {
		article.PublishedAt = *r.PublishedAt
	}
	return article
}

// PermissionsResponse reports what the current user may do with an article.
type PermissionsResponse struct {
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// ListArticles handles GET /articles. The q parameter searches titles and
// bodies, title searches titles only and author_id filters by author.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		articles []*domain.Article
		err      error
	)
	switch {
	case query.Has("q"):
		articles, err = h.service.Search(r.Context(), query.Get("q"))
	case query.Has("title"):
		articles, err = h.service.SearchByTitle(r.Context(), query.Get("title"))
	case query.Has("author_id"):
		articles, err = h.service.ListByAuthor(r.Context(), query.Get("author_id"))
	default:
		articles, err = h.service.ListAll(r.Context())
	}
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, articles)
}

// ListLatest handles GET /articles/latest.
func (h *Handler) ListLatest(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLatestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > MaxLatestLimit {
			httputil.Error(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxLatestLimit))
			return
		}
		limit = parsed
	}

	articles, err := h.service.ListLatest(r.Context(), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, articles)
}

// GetArticle handles GET /articles/{id}.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	article, ok, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if !ok {
		httputil.HandleError(r.Context(), w, ErrArticleNotFound, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, article)
}

// CreateArticle handles POST /articles. The current user becomes the author
// unless an administrator names another one.
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	actor := httputil.GetActor(r.Context())

	var req ArticleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	article := req.ToDomain()
	article.AuthorID = actor.ID
	if req.AuthorID != "" && actor.IsAdmin() {
		article.AuthorID = req.AuthorID
	}

	if err := h.service.Create(r.Context(), article); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, article)
}

// UpdateArticle handles PUT /articles/{id}. Authorship is preserved unless an
// administrator reassigns it.
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	actor := httputil.GetActor(r.Context())

	existing, ok, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if !ok {
		httputil.HandleError(r.Context(), w, ErrArticleNotFound, errorMappings)
		return
	}
	if !h.service.CanEdit(existing, actor) {
		httputil.HandleError(r.Context(), w, ErrForbidden, errorMappings)
		return
	}

	var req ArticleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	article := req.ToDomain()
	article.ID = existing.ID
	if req.AuthorID != "" && actor.IsAdmin() {
		article.AuthorID = req.AuthorID
	}

	updated, err := h.service.Update(r.Context(), article)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, updated)
}

// DeleteArticle handles DELETE /articles/{id}.
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	actor := httputil.GetActor(r.Context())

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// GetPermissions handles GET /articles/{id}/permissions.
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	actor := httputil.GetActor(r.Context())

	article, ok, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if !ok {
		httputil.HandleError(r.Context(), w, ErrArticleNotFound, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, PermissionsResponse{
		CanEdit:   h.service.CanEdit(article, actor),
		CanDelete: h.service.CanDelete(article, actor),
	})
}
