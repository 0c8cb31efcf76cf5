package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/remote"
)

// ErrEmptyCart is returned when checking out a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// InvalidMethodError indicates an unknown payment method.
type InvalidMethodError struct {
	Method string
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid payment method %q", e.Method)
}

// InvalidPhoneError indicates a phone number the mobile money provider cannot charge.
type InvalidPhoneError struct {
	Phone string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf("invalid mobile money phone %q", e.Phone)
}

// InvalidAddressError lists the missing or malformed delivery fields.
type InvalidAddressError struct {
	Fields []string
}

func (e *InvalidAddressError) Error() string {
	return "invalid delivery details: " + strings.Join(e.Fields, ", ")
}

// UnsupportedPaymentRegionError indicates mobile money is unavailable for the
// delivery country.
type UnsupportedPaymentRegionError struct {
	Country string
}

func (e *UnsupportedPaymentRegionError) Error() string {
	return fmt.Sprintf("mobile money not supported in %q", e.Country)
}

// OrderCreationError indicates the backend did not create the order.
// Message carries the backend's explanation when it gave one.
type OrderCreationError struct {
	Message string
	Err     error
}

func (e *OrderCreationError) Error() string {
	if e.Message != "" {
		return "create order: " + e.Message
	}
	return fmt.Sprintf("create order: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// CheckoutTimeoutError indicates order creation exceeded its time budget.
// The order may still have been created.
type CheckoutTimeoutError struct {
	After time.Duration
}

func (e *CheckoutTimeoutError) Error() string {
	return fmt.Sprintf("order creation timed out after %s", e.After)
}

// PaymentInitiationError indicates the push payment request was not accepted.
// The order exists and the cart is kept.
type PaymentInitiationError struct {
	OrderID string
	Message string
	Err     error
}

func (e *PaymentInitiationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("initiate payment for order %s: %s", e.OrderID, e.Message)
	}
	return fmt.Sprintf("initiate payment for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentInitiationError) Unwrap() error { return e.Err }

const (
	msgNetwork = "Network error. Please check your connection and try again."
	msgGeneric = "Something went wrong. Please try again."
)

// Message maps err to the text shown to the shopper. Backend explanations
// are used only where they describe the failure better than a fixed message.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		stockErr    *cart.InsufficientStockError
		qtyErr      *cart.InvalidQuantityError
		methodErr   *InvalidMethodError
		phoneErr    *InvalidPhoneError
		addrErr     *InvalidAddressError
		regionErr   *UnsupportedPaymentRegionError
		orderErr    *OrderCreationError
		timeoutErr  *CheckoutTimeoutError
		initErr     *PaymentInitiationError
		failedErr   *payment.FailedError
		pollTimeout *payment.TimeoutError
	)
	switch {
	case errors.As(err, &stockErr):
		if stockErr.Available <= 0 {
			return "This product is out of stock."
		}
		return fmt.Sprintf("Only %d in stock.", stockErr.Available)
	case errors.As(err, &qtyErr):
		return "Quantity must be at least 1."
	case errors.Is(err, cart.ErrNotInCart):
		return "This product is no longer in your cart."
	case errors.Is(err, cart.ErrMissingProductID):
		return "Choose a product to add."
	case errors.Is(err, product.ErrNotFound):
		return "This product is no longer available."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty. Add some products before checking out."
	case errors.As(err, &methodErr):
		return "Choose a payment method: cash on delivery, M-Pesa or card."
	case errors.As(err, &phoneErr):
		return "Enter a valid M-Pesa number, for example 254712345678."
	case errors.As(err, &addrErr):
		return "Please complete your delivery details: " + strings.Join(addrErr.Fields, ", ") + "."
	case errors.As(err, &regionErr):
		return "M-Pesa is only available for deliveries within Kenya. Choose another payment method."
	case errors.As(err, &timeoutErr):
		return "Placing your order is taking longer than expected. Check your orders before trying again."
	case errors.As(err, &orderErr):
		if orderErr.Message != "" {
			return orderErr.Message
		}
		if remote.IsNetwork(err) {
			return msgNetwork
		}
		return "We could not place your order. Please try again."
	case errors.As(err, &initErr):
		if initErr.Message != "" {
			return initErr.Message
		}
		if remote.IsNetwork(err) {
			return msgNetwork
		}
		return "We could not send the payment request to your phone. Please try again."
	case errors.As(err, &failedErr):
		if failedErr.Reason != "" {
			return failedErr.Reason
		}
		return "Payment failed or was cancelled."
	case errors.As(err, &pollTimeout):
		return "We have not received your payment confirmation yet. Complete the prompt on your phone and check again."
	case remote.IsNetwork(err):
		return msgNetwork
	default:
		return msgGeneric
	}
}
