package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	promptHandler "github.com/zhouzirui/gptbot/internal/handler/prompt"
	sessionHandler "github.com/zhouzirui/gptbot/internal/handler/session"
	speechHandler "github.com/zhouzirui/gptbot/internal/handler/speech"
	streamHandler "github.com/zhouzirui/gptbot/internal/handler/stream"
	"github.com/zhouzirui/gptbot/internal/model/prompt"
	sessionService "github.com/zhouzirui/gptbot/internal/service/session"
	"github.com/zhouzirui/gptbot/pkg/utils"
)

// Services 是管理接口依赖的服务。AI 与 Speech 为 nil 时对应路由返回 503。
type Services struct {
	Prompts  prompt.Store
	Sessions *sessionService.Store
	AI       streamHandler.Streamer
	Speech   speechHandler.SpeechService

	// AdminToken 非空时 /api 下所有路由都需要 Bearer 认证。
	AdminToken string
}

// NewRouter wires admin HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if svc.AdminToken != "" {
			api.Use(bearerAuth(svc.AdminToken))
		}

		promptHandler.New(svc.Prompts).RegisterRoutes(api)
		sessionHandler.New(svc.Sessions).RegisterRoutes(api)

		if svc.AI != nil {
			streamHandler.New(svc.AI, svc.Prompts).RegisterRoutes(api)
		} else {
			api.Get("/stream", unavailable("ai streaming unavailable"))
		}

		if svc.Speech != nil {
			speechHandler.New(svc.Speech).RegisterRoutes(api)
		} else {
			api.HandleFunc("/speech/*", unavailable("speech disabled"))
		}
	})

	return r
}

func unavailable(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusServiceUnavailable, message)
	}
}

// bearerAuth rejects requests whose Authorization header does not carry token.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
