package cart

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniCart/internal/auth"
	"MiniCart/pkg/kit"
)

const (
	mutateLimit  = 120
	limitWindow  = 60 * time.Second
	readyTimeout = 1 * time.Second
)

type Server struct {
	Provider *Provider
	Slot     Slot
	Catalog  *CatalogClient
	Tokens   *auth.TokenMaker
	Log      *zap.Logger
}

type cartResp struct {
	Items []LineItem `json:"items"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	limiter := kit.NewIPRateLimiter(mutateLimit, limitWindow)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	if s.Tokens != nil {
		r.With(limiter.Middleware).Post("/devices", auth.IssueDevice(s.Tokens, 0, s.Log))
	}

	r.Route("/cart", func(cr chi.Router) {
		if s.Tokens != nil {
			cr.Use(auth.RequireDevice(s.Tokens))
		}
		cr.Use(Provide(s.Provider, s.Log))

		cr.Get("/", s.list)
		cr.Get("/events", s.events)

		cr.Group(func(mr chi.Router) {
			mr.Use(limiter.Middleware)
			mr.Post("/items", s.add)
			mr.Post("/items/{id}/increment", s.increment)
			mr.Post("/items/{id}/decrement", s.decrement)
			if s.Catalog != nil {
				mr.Post("/products/{id}", s.addProduct)
			}
		})
	})

	return r
}

// Provide opens the caller's cart and puts it in the request context, making
// MustFromContext valid for the rest of the chain.
func Provide(p *Provider, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, _ := auth.DeviceFromContext(r.Context())

			st, err := p.Open(r.Context(), owner)
			if err != nil {
				switch {
				case errors.Is(err, ErrMalformedSnapshot):
					kit.WriteError(w, r, http.StatusInternalServerError, "cart unreadable", nil)
				case errors.Is(err, ErrProviderClosed):
					kit.WriteError(w, r, http.StatusServiceUnavailable, "shutting down", nil)
				default:
					if log != nil {
						log.Warn("open cart failed", zap.Error(err), zap.String("owner", owner))
					}
					kit.WriteError(w, r, http.StatusServiceUnavailable, "storage unavailable", nil)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), st)))
		})
	}
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Slot.Ping(ctx); err != nil {
		if s.Log != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	st := MustFromContext(r.Context())
	kit.WriteJSON(w, http.StatusOK, cartResp{Items: st.Items()})
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var item LineItem
	if err := kit.DecodeJSON(w, r, &item); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "id required", nil)
		return
	}

	st := MustFromContext(r.Context())
	wr := st.AddToCart(item)
	s.respond(w, r, st, wr, addedStatus(wr))
}

func (s *Server) addProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrCatalogNotFound):
			kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"id": id})
		case errors.Is(err, ErrCatalogUnavailable):
			kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
		default:
			if s.Log != nil {
				s.Log.Warn("catalog error", zap.Error(err), zap.String("product_id", id))
			}
			kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
		}
		return
	}

	st := MustFromContext(r.Context())
	wr := st.AddToCart(p.LineItem())
	s.respond(w, r, st, wr, addedStatus(wr))
}

func (s *Server) increment(w http.ResponseWriter, r *http.Request) {
	st := MustFromContext(r.Context())
	s.respond(w, r, st, st.Increment(chi.URLParam(r, "id")), http.StatusOK)
}

func (s *Server) decrement(w http.ResponseWriter, r *http.Request) {
	st := MustFromContext(r.Context())
	s.respond(w, r, st, st.Decrement(chi.URLParam(r, "id")), http.StatusOK)
}

// respond answers a mutation. With ?wait=true the response is held until the
// snapshot is durable; otherwise the in-memory cart is returned at once.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, st *Store, wr *Write, status int) {
	if r.URL.Query().Get("wait") == "true" {
		if err := wr.Wait(r.Context()); err != nil {
			if s.Log != nil {
				s.Log.Error("cart write failed", zap.Error(err), zap.String("cart_key", st.Key()))
			}
			kit.WriteError(w, r, http.StatusInternalServerError, "write failed", nil)
			return
		}
	}

	kit.WriteJSON(w, status, cartResp{Items: st.Items()})
}

// addedStatus is 201 for a new line item and 200 for an ignored duplicate.
func addedStatus(wr *Write) int {
	if wr.Noop() {
		return http.StatusOK
	}
	return http.StatusCreated
}
