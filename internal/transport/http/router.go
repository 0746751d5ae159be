package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/service"
	httpmw "github.com/cwrk-planet/messaging-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/messaging-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, presenceSvc *service.PresenceService, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-User-ID", "X-Tenant-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint authenticates from query params on upgrade.
	r.Get("/ws", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware)
		pr.Use(httpmw.ActivityMiddleware(presenceSvc))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/channels", func(cr chi.Router) {
			cr.Post("/", h.CreateChannel)
			cr.Get("/", h.ListChannels)

			cr.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetChannel)
				rr.Delete("/", h.DeleteChannel)
				rr.Post("/join", h.JoinChannel)
				rr.Post("/leave", h.LeaveChannel)
				rr.Post("/invite", h.InviteMember)
				rr.Get("/members", h.ListMembers)
				rr.Post("/read", h.MarkChannelRead)
				rr.Put("/mute", h.MuteChannel)
				rr.Get("/messages", h.GetHistory)
			})
		})

		pr.Get("/messages/{id}/reactions", h.ListMessageReactions)

		pr.Route("/notifications", func(nr chi.Router) {
			nr.Get("/", h.ListNotifications)
			nr.Post("/{id}/read", h.MarkNotificationRead)
			nr.Delete("/{id}", h.DeleteNotification)
		})

		pr.Get("/presence/{userID}", h.GetPresence)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
