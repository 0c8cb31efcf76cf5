package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	store, release, err := s.open(r.Context(), session, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, session, store) })
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	req, err := decodeAddItem(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, cart.ErrMissingProductID)
		return
	}
	if req.Quantity < 1 {
		writeError(w, r, &cart.InvalidQuantityError{ProductID: req.ProductID, Quantity: req.Quantity})
		return
	}

	ctx := withToken(r)
	p, err := s.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "get product"))
		return
	}

	s.mutate(w, r, session, func(store *cart.Store) error {
		return store.AddItem(ctx, *p, req.Quantity)
	})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	store, release, err := s.open(r.Context(), session, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	id := chi.URLParam(r, "productID")
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItemStatus(e, id, store.Quantity(id)) })
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	quantity, err := decodeQuantity(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "productID")
	s.mutate(w, r, session, func(store *cart.Store) error {
		return store.UpdateQuantity(r.Context(), id, quantity)
	})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	id := chi.URLParam(r, "productID")
	s.mutate(w, r, session, func(store *cart.Store) error {
		return store.RemoveItem(r.Context(), id)
	})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	s.mutate(w, r, session, func(store *cart.Store) error {
		return store.Clear(r.Context())
	})
}

// mutate applies f to the session cart under the session lock and responds
// with the resulting cart.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, session string, f func(*cart.Store) error) {
	store, release, err := s.open(r.Context(), session, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	if err := f(store); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, session, store) })
}
