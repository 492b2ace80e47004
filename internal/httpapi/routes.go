package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bazinga-client/internal/types"
)

// RouterOptions allows customization of router setup for tests.
type RouterOptions struct {
	RateLimit           float64 // requests per second per client
	RateLimitBurst      int
	RateLimitIdle       time.Duration
	MaxRequestSize      int64
	DisableRateLimiting bool
	Logger              *zap.Logger
}

func SetupRoutes(h *Handler, opts RouterOptions) http.Handler {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(RequestSizeLimiter(opts.MaxRequestSize))
	if !opts.DisableRateLimiting && opts.RateLimit > 0 {
		r.Use(NewRateLimiter(opts.RateLimit, opts.RateLimitBurst, opts.RateLimitIdle).Middleware())
	}

	r.Get("/healthz", Healthz)
	r.Get("/themes", h.Themes)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)

		r.Route("/{code}/{player}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.CloseSession)
			r.Get("/ws", h.Stream)
			r.Get("/journal", h.Journal)

			r.Post("/start", h.Command(types.CmdStartGame))
			r.Post("/answer", h.Command(types.CmdSubmitAnswer))
			r.Post("/vote", h.Command(types.CmdSubmitVote))
			r.Post("/next", h.Command(CmdNextQuestion))
			r.Post("/reset", h.Command(CmdReset))
		})
	})
	return r
}
