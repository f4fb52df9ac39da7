package session

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	sessionservice "github.com/zhouzirui/gptbot/internal/service/session"
	"github.com/zhouzirui/gptbot/pkg/utils"
)

// Handler 会话管理的HTTP处理器
type Handler struct {
	sessions *sessionservice.Store
}

// New 创建会话处理器
func New(sessions *sessionservice.Store) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleList)
	r.Get("/sessions/{chatID}", h.handleGet)
	r.Delete("/sessions/{chatID}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List())
}

// handleGet 返回会话完整状态，不会创建新会话
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	state, err := h.sessions.Get(chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	if !h.sessions.Delete(chatID) {
		utils.RespondError(w, http.StatusNotFound, sessionservice.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "chatID must be an integer")
		return 0, false
	}
	return chatID, true
}
