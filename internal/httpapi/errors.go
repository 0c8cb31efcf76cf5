package httpapi

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/remote"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// statusOf maps err to the HTTP status and machine readable code.
func statusOf(err error) (int, string) {
	var (
		decodeErr  *decodeError
		stockErr   *cart.InsufficientStockError
		qtyErr     *cart.InvalidQuantityError
		methodErr  *checkout.InvalidMethodError
		phoneErr   *checkout.InvalidPhoneError
		addrErr    *checkout.InvalidAddressError
		regionErr  *checkout.UnsupportedPaymentRegionError
		orderErr   *checkout.OrderCreationError
		timeoutErr *checkout.CheckoutTimeoutError
		initErr    *checkout.PaymentInitiationError
		failedErr  *payment.FailedError
		pollErr    *payment.TimeoutError
	)
	switch {
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, cart.ErrMissingProductID), errors.As(err, &qtyErr):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, cart.ErrNotInCart):
		return http.StatusNotFound, "not_in_cart"
	case errors.As(err, &stockErr):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.As(err, &methodErr):
		return http.StatusUnprocessableEntity, "invalid_payment_method"
	case errors.As(err, &phoneErr):
		return http.StatusUnprocessableEntity, "invalid_phone"
	case errors.As(err, &addrErr):
		return http.StatusUnprocessableEntity, "invalid_address"
	case errors.As(err, &regionErr):
		return http.StatusUnprocessableEntity, "unsupported_payment_region"
	case errors.As(err, &failedErr):
		return http.StatusUnprocessableEntity, "payment_failed"
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "checkout_timeout"
	case errors.As(err, &pollErr):
		return http.StatusGatewayTimeout, "payment_pending"
	case errors.As(err, &orderErr):
		return http.StatusBadGateway, "order_failed"
	case errors.As(err, &initErr):
		return http.StatusBadGateway, "payment_initiation_failed"
	case remote.IsNetwork(err):
		return http.StatusBadGateway, "backend_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		var respErr *remote.ResponseError
		if errors.As(err, &respErr) {
			return http.StatusBadGateway, "backend_error"
		}
		return http.StatusInternalServerError, "internal"
	}
}

// writeError logs err and writes the API error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.String("code", code), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.String("code", code), zap.Error(err))
	}

	msg := checkout.Message(err)
	if code == "invalid_request" {
		msg = "The request body is malformed."
	}
	httpmiddleware.WriteError(w, status, code, msg)
}
