package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/security/middleware"
	"github.com/yourorg/draftmill/internal/service"
)

// ArticlesHandler exposes the content pipeline API.
type ArticlesHandler struct {
	articles *service.ArticleService
	logger   *slog.Logger
}

// NewArticlesHandler creates a new articles handler
func NewArticlesHandler(articles *service.ArticleService, logger *slog.Logger) *ArticlesHandler {
	return &ArticlesHandler{articles: articles, logger: logger}
}

type createArticleRequest struct {
	Topic string `json:"topic"`
}

// Create handles POST /api/articles.
func (h *ArticlesHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	article, err := h.articles.CreateArticle(r.Context(), claims.Email, req.Topic, requestMeta(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, article)
}

// Advance handles POST /api/articles/{id}/advance. The LLM call can take a
// while; the request context bounds it.
func (h *ArticlesHandler) Advance(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	article, err := h.articles.Advance(r.Context(), claims.Email, r.PathValue("id"), requestMeta(r))
	if err != nil {
		h.logger.Warn("article advance failed",
			slog.String("article_id", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, article)
}

// List handles GET /api/articles.
func (h *ArticlesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	articles, err := h.articles.ListArticles(r.Context(), claims.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if articles == nil {
		articles = []*domain.Article{}
	}
	_ = writeJSON(w, http.StatusOK, articles)
}

// Get handles GET /api/articles/{id}.
func (h *ArticlesHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	article, err := h.articles.GetArticle(r.Context(), claims.Email, r.PathValue("id"), claims.Role == domain.RoleAdmin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, article)
}

// Delete handles DELETE /api/articles/{id}.
func (h *ArticlesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	err := h.articles.DeleteArticle(r.Context(), claims.Email, r.PathValue("id"), claims.Role == domain.RoleAdmin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
