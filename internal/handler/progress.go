package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/service"
)

// progressEvent is one pipeline status update pushed to subscribers.
type progressEvent struct {
	ArticleID string    `json:"articleId"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// ProgressHandler streams pipeline progress over websockets. It also
// implements service.StageNotifier so the article service can push events
// without knowing about websockets.
type ProgressHandler struct {
	auth           *service.AuthService
	articles       *service.ArticleService
	logger         *slog.Logger
	allowedOrigins []string

	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]struct{} // articleID -> connections
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(auth *service.AuthService, articles *service.ArticleService, allowedOrigins []string, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		auth:           auth,
		articles:       articles,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		subs:           map[string]map[*websocket.Conn]struct{}{},
	}
}

func (h *ProgressHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/articles/{id}/progress?token=... The token
// goes in the query string because browsers cannot set headers on
// websocket upgrades.
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	articleID := r.PathValue("id")
	if articleID == "" {
		http.Error(w, "missing article id", http.StatusBadRequest)
		return
	}

	claims := h.auth.VerifyAccessToken(r.URL.Query().Get("token"))
	if claims == nil {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	// Ownership check before upgrading; non-owners see the same 404 the
	// REST API gives them.
	if _, err := h.articles.GetArticle(r.Context(), claims.Email, articleID, claims.Role == domain.RoleAdmin); err != nil {
		writeDomainError(w, err)
		return
	}

	up := h.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.subscribe(articleID, ws)
	defer h.unsubscribe(articleID, ws)
	defer ws.Close()

	// Heartbeat keeps intermediaries from dropping idle connections.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	// Block until the client goes away; events arrive via NotifyStage.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", slog.String("article_id", articleID))
			}
			return
		}
	}
}

// NotifyStage pushes a progress event to every subscriber of the article.
// Dead connections are dropped on write failure.
func (h *ProgressHandler) NotifyStage(articleID, stage, status string) {
	event := progressEvent{
		ArticleID: articleID,
		Stage:     stage,
		Status:    status,
		At:        time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs[articleID] {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.subs[articleID], conn)
		}
	}
}

func (h *ProgressHandler) subscribe(articleID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[articleID] == nil {
		h.subs[articleID] = map[*websocket.Conn]struct{}{}
	}
	h.subs[articleID][conn] = struct{}{}
}

func (h *ProgressHandler) unsubscribe(articleID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[articleID], conn)
	if len(h.subs[articleID]) == 0 {
		delete(h.subs, articleID)
	}
}
