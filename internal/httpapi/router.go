// Package httpapi is the JSON HTTP surface of the authentication engine.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/middleware"
)

// Deliverer sends a verification token to the email address of subjectID.
type Deliverer func(ctx context.Context, subjectID string, ticket *authcore.VerificationTicket) error

// Options configures NewRouter.
type Options struct {
	Logger *slog.Logger
	// TrustForwarded takes the client address from X-Forwarded-For.
	TrustForwarded bool
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Deliver is called for every issued verification token. The default
	// only logs that a token was issued.
	Deliver Deliverer
}

type handler struct {
	engine  *authcore.Engine
	logger  *slog.Logger
	deliver Deliverer
}

// NewRouter mounts the auth routes on a chi router.
func NewRouter(engine *authcore.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{engine: engine, logger: logger, deliver: opts.Deliver}
	if h.deliver == nil {
		h.deliver = h.logDelivery
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.ClientContext(opts.TrustForwarded))

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(engine))

		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.Post("/verify-email", h.confirmEmail)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))
			r.Get("/me", h.me)
			r.Delete("/account", h.deleteAccount)
			r.Post("/password", h.changePassword)
			r.Post("/verify-email/resend", h.resendVerification)
		})
	})

	return r
}

func (h *handler) logDelivery(ctx context.Context, subjectID string, ticket *authcore.VerificationTicket) error {
	h.log(ctx).Info("verification token issued",
		slog.String("subject_id", subjectID),
		slog.Duration("ttl", ticket.TTL),
	)
	return nil
}
