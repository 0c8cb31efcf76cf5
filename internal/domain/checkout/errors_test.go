package checkout

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/remote"
)

func TestMessage(t *testing.T) {
	netErr := &remote.NetworkError{Op: "x", Err: errors.New("refused")}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"stock", &cart.InsufficientStockError{ProductID: "1", Available: 3, Requested: 4}, "Only 3 in stock."},
		{"out of stock", &cart.InsufficientStockError{ProductID: "1", Available: 0, Requested: 1}, "This product is out of stock."},
		{"missing product", cart.ErrMissingProductID, "Choose a product to add."},
		{"product gone", errors.Wrap(product.ErrNotFound, "get product"), "This product is no longer available."},
		{"empty cart", errors.Wrap(ErrEmptyCart, "checkout"), "Your cart is empty. Add some products before checking out."},
		{"phone", &InvalidPhoneError{Phone: "1"}, "Enter a valid M-Pesa number, for example 254712345678."},
		{"address", &InvalidAddressError{Fields: []string{"street", "city"}}, "Please complete your delivery details: street, city."},
		{"order network", &OrderCreationError{Err: netErr}, msgNetwork},
		{"order generic", &OrderCreationError{Err: errors.New("boom")}, "We could not place your order. Please try again."},
		{"initiation message", &PaymentInitiationError{OrderID: "1", Message: "Invalid phone"}, "Invalid phone"},
		{"payment failed reason", &payment.FailedError{PaymentID: "1", Status: payment.StatusFailed, Reason: "Request cancelled by user"}, "Request cancelled by user"},
		{"payment failed", &payment.FailedError{PaymentID: "1", Status: payment.StatusCancelled}, "Payment failed or was cancelled."},
		{"bare network", netErr, msgNetwork},
		{"unknown", errors.New("boom"), msgGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestMessage_Distinct(t *testing.T) {
	errs := []error{
		&cart.InsufficientStockError{Available: 2},
		ErrEmptyCart,
		&InvalidMethodError{},
		&InvalidPhoneError{},
		&InvalidAddressError{Fields: []string{"street"}},
		&UnsupportedPaymentRegionError{},
		&OrderCreationError{Err: errors.New("x")},
		&CheckoutTimeoutError{},
		&PaymentInitiationError{Err: errors.New("x")},
		&payment.TimeoutError{},
		&remote.NetworkError{Err: errors.New("x")},
	}
	seen := make(map[string]int)
	for i, err := range errs {
		msg := Message(err)
		if j, dup := seen[msg]; dup {
			t.Errorf("errors %d and %d share message %q", j, i, msg)
		}
		seen[msg] = i
	}
}
