package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/hub"
)

type Deps struct {
	Hub *hub.Hub
	// WS serves the websocket upgrade on /ws.
	WS    http.Handler
	Plans PlanReader
	Log   *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/", Root(time.Now))
	r.Get("/healthz", Healthz)
	r.Handle("/ws", d.WS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", Stats(d.Hub))
		r.Post("/rooms", CreateRoom(d.Hub, d.Log))
		r.Get("/users/{userID}/plan", UserPlan(d.Plans, d.Log))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
