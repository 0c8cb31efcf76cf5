// Package httpapi exposes the session cart and checkout over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-storefront/internal/backend"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// Checkouter runs checkout and payment confirmation for a cart.
type Checkouter interface {
	Checkout(ctx context.Context, store *cart.Store, req checkout.Request) (*checkout.Result, error)
	ConfirmPayment(ctx context.Context, store *cart.Store, paymentID string) (*payment.Attempt, error)
}

// Config holds HTTP API settings.
type Config struct {
	// SessionTTL is the cookie lifetime of a cart session.
	SessionTTL time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Server routes the cart and checkout endpoints.
type Server struct {
	cfg      Config
	catalog  product.Catalog
	storage  cart.Storage
	checkout Checkouter
	locks    *sessionLocks
	router   chi.Router
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	checkoutMiddlewares []httpmiddleware.Middleware
}

// WithCheckoutMiddleware wraps the checkout and payment confirmation routes,
// typically with a rate limiter.
func WithCheckoutMiddleware(mws ...httpmiddleware.Middleware) Option {
	return func(o *serverOptions) {
		o.checkoutMiddlewares = append(o.checkoutMiddlewares, mws...)
	}
}

// New creates a Server.
func New(cfg Config, catalog product.Catalog, storage cart.Storage, co Checkouter, opts ...Option) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}

	s := &Server{
		cfg:      cfg,
		catalog:  catalog,
		storage:  storage,
		checkout: co,
		locks:    newSessionLocks(),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", s.getCart)
		r.Delete("/cart", s.clearCart)
		r.Post("/cart/items", s.addItem)
		r.Get("/cart/items/{productID}", s.getItem)
		r.Patch("/cart/items/{productID}", s.updateItem)
		r.Delete("/cart/items/{productID}", s.removeItem)

		r.Group(func(r chi.Router) {
			r.Use(toChi(o.checkoutMiddlewares)...)
			r.Post("/checkout", s.postCheckout)
			r.Post("/payments/{paymentID}/confirm", s.confirmPayment)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not_found", "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
	})
	s.router = r
	return s
}

func toChi(mws []httpmiddleware.Middleware) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, len(mws))
	for i, mw := range mws {
		out[i] = mw
	}
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteFinder resolves request paths to chi route patterns for logging and
// metrics.
func (s *Server) RouteFinder() httpmiddleware.RouteFinder {
	return func(r *http.Request) (string, bool) {
		rctx := chi.NewRouteContext()
		if !s.router.Match(rctx, r.Method, r.URL.Path) {
			return "", false
		}
		return rctx.RoutePattern(), true
	}
}

// withToken forwards the shopper's bearer token to backend calls.
func withToken(r *http.Request) context.Context {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return r.Context()
	}
	return backend.WithToken(r.Context(), token)
}

// open loads the session cart. When lock is set the session lock is held
// until release is called.
func (s *Server) open(ctx context.Context, session string, lock bool) (store *cart.Store, release func(), err error) {
	release = func() {}
	if lock {
		release = s.locks.lock(session)
	}
	store, err = cart.Open(ctx, s.storage, session)
	if err != nil {
		release()
		return nil, nil, err
	}
	return store, release, nil
}
