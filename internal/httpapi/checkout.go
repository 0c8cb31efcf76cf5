package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (s *Server) postCheckout(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	req, err := decodeCheckout(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := withToken(r)
	store, release, err := s.open(ctx, session, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	res, err := s.checkout.Checkout(ctx, store, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeResult(e, res) })
}

// confirmPayment blocks until the payment settles or polling gives up. The
// session lock is held meanwhile so the cart cannot change under a payment.
func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	paymentID := chi.URLParam(r, "paymentID")

	ctx := withToken(r)
	store, release, err := s.open(ctx, session, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	attempt, err := s.checkout.ConfirmPayment(ctx, store, paymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeConfirmation(e, paymentID, attempt) })
}
