package http

import (
	"net/http"
	"time"

	"github.com/unihub/chat-service/internal/metrics"
	"github.com/unihub/chat-service/internal/security"
	httpmw "github.com/unihub/chat-service/internal/transport/http/middleware"
	"github.com/unihub/chat-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, verifier *security.Verifier, wsServer *ws.Server, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	r.Use(httpmw.RequestLogger)

	// WS endpoint: токен передаётся в query, поэтому вне auth-группы
	r.Get("/ws/conversations/{id}", wsServer.HandleWS)

	// Все маршруты требуют access_token
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/api/chat", func(api chi.Router) {
			api.Route("/conversations", func(cv chi.Router) {
				cv.Post("/", h.CreateConversation)
				cv.Get("/", h.ListConversations)

				cv.Route("/{id}", func(rr chi.Router) {
					rr.Get("/", h.GetConversation)
					rr.Delete("/", h.DeleteConversation)
					rr.Post("/messages", h.SendMessage)
					rr.Get("/messages", h.GetMessages)
					rr.Get("/search", h.SearchMessages)
					rr.Post("/read", h.MarkAsRead)
					rr.Post("/typing", h.Typing)
				})
			})

			api.Route("/messages/{id}", func(rr chi.Router) {
				rr.Put("/", h.EditMessage)
				rr.Delete("/", h.DeleteMessage)
				rr.Post("/read", h.MarkMessageRead)
				rr.Post("/reactions", h.ToggleReaction)
			})
		})
	})

	// health + metrics
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}
