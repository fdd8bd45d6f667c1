/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/books/*          Catalog, search, borrow and return
  /api/loans/*          Overdue report
  /api/patrons/*        Patron status and late fees
  /api/refunds          Late fee refunds
  /api/scenarios/*      Sample catalog

RATE LIMITING:
  Routes that reach the payment gateway are limited per client IP
  when RouterOptions.PaymentLimiter is set.

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/library-engine/ratelimit"
)

// RouterOptions configures the optional parts of the router.
type RouterOptions struct {
	// CORSOrigins defaults to "*" when empty.
	CORSOrigins []string
	// PaymentLimiter throttles pay and refund per client IP. Nil disables it.
	PaymentLimiter *ratelimit.KeyedRateLimiter
	// RequestLog enables chi's request logger.
	RequestLog bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	payments := func(r chi.Router) chi.Router { return r }
	if opts.PaymentLimiter != nil {
		payments = func(r chi.Router) chi.Router {
			return r.With(RateLimitMiddleware(opts.PaymentLimiter, h.Logger))
		}
	}

	r.Route("/api", func(r chi.Router) {
		// Catalog and loan routes
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Post("/", h.AddBook)
			r.Get("/search", h.SearchBooks)
			r.Post("/{id}/borrow", h.BorrowBook)
			r.Post("/{id}/return", h.ReturnBook)
		})

		r.Get("/loans/overdue", h.ListOverdue)

		// Patron routes
		r.Route("/patrons/{id}", func(r chi.Router) {
			r.Get("/status", h.GetPatronStatus)
			r.Get("/fees/{bookID}", h.GetLateFee)
			payments(r).Post("/fees/{bookID}/pay", h.PayLateFee)
		})

		payments(r).Post("/refunds", h.RefundLateFee)

		// Scenario routes
		r.Post("/scenarios/sample", h.LoadSample)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
	})

	return r
}

// RateLimitMiddleware rejects requests over the per-IP limit with 429.
// Expects middleware.RealIP to have normalised RemoteAddr.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger interface{ Warn(msg string, args ...any) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr when there is one.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
