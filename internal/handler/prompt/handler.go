package prompt

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gptbot/internal/model/prompt"
	"github.com/zhouzirui/gptbot/pkg/utils"
)

// Handler 提示词目录的HTTP处理器
type Handler struct {
	prompts prompt.Store
}

// New 创建提示词处理器
func New(prompts prompt.Store) *Handler {
	return &Handler{prompts: prompts}
}

// RegisterRoutes 注册提示词相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/prompts", h.handleCatalogue)
}

// handleCatalogue 列出角色、GPT 主题、测验主题与商业类别
func (h *Handler) handleCatalogue(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.prompts.Catalogue())
}
