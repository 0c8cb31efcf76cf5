// Package checkout turns a cart into an order and hands the shopper the next
// step for the chosen payment method.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/remote"
	"github.com/xenking/kart-storefront/internal/events"
)

const instrumentationName = "github.com/xenking/kart-storefront/internal/domain/checkout"

// Config holds checkout tunables.
type Config struct {
	// OrderTimeout bounds a single order creation call.
	OrderTimeout time.Duration
	// PaymentRegions lists the countries, by name or ISO code, where mobile
	// money can be used.
	PaymentRegions []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OrderTimeout:   15 * time.Second,
		PaymentRegions: []string{"Kenya", "KE"},
	}
}

// Service orchestrates checkout against the order and payment backends.
type Service struct {
	orders    order.Creator
	payments  payment.Initiator
	poller    *payment.Poller
	events    events.Publisher
	validator *requestValidator
	cfg       Config
	now       func() time.Time

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the publisher notified about checkout outcomes.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithTracerProvider sets the provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a checkout Service. A nil meter provider disables metrics.
func NewService(
	orders order.Creator,
	payments payment.Initiator,
	poller *payment.Poller,
	cfg Config,
	mp metric.MeterProvider,
	opts ...Option,
) (*Service, error) {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = DefaultConfig().OrderTimeout
	}
	if len(cfg.PaymentRegions) == 0 {
		cfg.PaymentRegions = DefaultConfig().PaymentRegions
	}

	outcomes, err := mp.Meter(instrumentationName).Int64Counter("storefront.checkout.outcomes",
		metric.WithDescription("Checkout attempts by payment method and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outcomes counter")
	}

	s := &Service{
		orders:    orders,
		payments:  payments,
		poller:    poller,
		events:    events.Nop{},
		validator: newRequestValidator(cfg.PaymentRegions),
		cfg:       cfg,
		now:       time.Now,
		tracer:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
		outcomes:  outcomes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Checkout validates req against the cart, creates the order and branches on
// the payment method. Validation failures never reach the network. The cart
// is cleared only for cash orders.
func (s *Service) Checkout(ctx context.Context, store *cart.Store, req Request) (result *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.String("payment.method", string(req.Method))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", string(req.Method)),
			attribute.String("outcome", outcomeLabel(result, rerr)),
		))
		span.End()
	}()

	lg := zctx.From(ctx).With(
		zap.String("session", store.Key()),
		zap.String("method", string(req.Method)),
	)

	if store.Len() == 0 {
		return nil, ErrEmptyCart
	}
	req, err := s.validator.Validate(req)
	if err != nil {
		return nil, err
	}

	draft := buildDraft(store, req)
	o, err := s.createOrder(ctx, draft)
	if err != nil {
		lg.Warn("Create order failed", zap.Error(err))
		return nil, err
	}
	lg = lg.With(zap.String("order_id", o.ID), zap.String("order_number", o.Number))
	span.SetAttributes(attribute.String("order.id", o.ID))

	res := &Result{
		Method:      req.Method,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Amount:      draft.Total,
	}

	switch req.Method {
	case MethodCash:
		if err := store.Clear(ctx); err != nil {
			lg.Error("Clear cart after cash order", zap.Error(err))
		}
		res.Outcome = OutcomePayOnDelivery
		res.Message = "Order placed successfully! You will pay on delivery."
		s.publish(ctx, lg, events.OrderPlaced, store.Key(), res)

	case MethodMobileMoney:
		ack, err := s.payments.InitiatePayment(ctx, o.ID, req.Customer.Phone)
		if err != nil {
			lg.Warn("Initiate payment failed", zap.Error(err))
			s.publish(ctx, lg, events.OrderPlaced, store.Key(), res)
			return nil, newPaymentInitiationError(o.ID, err)
		}
		res.Outcome = OutcomePendingConfirmation
		res.PaymentID = ack.PaymentID
		res.CheckoutRequestID = ack.CheckoutRequestID
		res.Message = "M-Pesa payment initiated. Check your phone to complete payment."
		s.publish(ctx, lg, events.PaymentInitiated, store.Key(), res)

	case MethodCard:
		res.Outcome = OutcomeCardRedirect
		res.Message = "Proceed with card payment."
		s.publish(ctx, lg, events.CardRedirectIssued, store.Key(), res)
	}

	lg.Info("Checkout completed", zap.String("outcome", string(res.Outcome)))
	return res, nil
}

// ConfirmPayment waits for paymentID to settle and clears the cart once it
// succeeds. An empty paymentID means the provider already confirmed the
// payment out of band and the cart is cleared directly.
func (s *Service) ConfirmPayment(ctx context.Context, store *cart.Store, paymentID string) (*payment.Attempt, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.ConfirmPayment",
		trace.WithAttributes(attribute.String("payment.id", paymentID)),
	)
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("session", store.Key()), zap.String("payment_id", paymentID))

	var attempt *payment.Attempt
	if paymentID != "" {
		a, err := s.poller.Poll(ctx, paymentID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var failed *payment.FailedError
			if errors.As(err, &failed) {
				s.publish(ctx, lg, events.PaymentFailed, store.Key(), &Result{PaymentID: paymentID, Method: MethodMobileMoney})
			}
			return nil, err
		}
		attempt = a
	}

	amount := store.Totals().Total
	if err := store.Clear(ctx); err != nil {
		return attempt, errors.Wrap(err, "clear cart")
	}
	s.publish(ctx, lg, events.PaymentConfirmed, store.Key(), &Result{PaymentID: paymentID, Amount: amount})
	lg.Info("Payment confirmed")
	return attempt, nil
}

func (s *Service) createOrder(ctx context.Context, draft order.Draft) (*order.Order, error) {
	orderCtx, cancel := context.WithTimeout(ctx, s.cfg.OrderTimeout)
	defer cancel()

	o, err := s.orders.CreateOrder(orderCtx, draft)
	if err == nil {
		return o, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "create order")
	}
	if errors.Is(orderCtx.Err(), context.DeadlineExceeded) {
		return nil, &CheckoutTimeoutError{After: s.cfg.OrderTimeout}
	}
	msg, _ := remote.MessageOf(err)
	return nil, &OrderCreationError{Message: msg, Err: err}
}

func (s *Service) publish(ctx context.Context, lg *zap.Logger, typ events.Type, session string, res *Result) {
	err := s.events.Publish(ctx, events.Event{
		Type:        typ,
		SessionID:   session,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		PaymentID:   res.PaymentID,
		Method:      string(res.Method),
		Amount:      res.Amount,
		At:          s.now(),
	})
	if err != nil {
		lg.Warn("Publish checkout event", zap.String("type", string(typ)), zap.Error(err))
	}
}

func buildDraft(store *cart.Store, req Request) order.Draft {
	items := store.Items()
	totals := store.Totals()

	draft := order.Draft{
		Items:         make([]order.DraftItem, len(items)),
		Subtotal:      totals.Subtotal,
		ShippingCost:  totals.ShippingCost,
		Total:         totals.Total,
		PaymentMethod: req.Method.wire(),
		Customer: order.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Address: order.Address{
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		},
		Notes: req.Notes,
	}
	for i, it := range items {
		draft.Items[i] = order.DraftItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.LineTotal(),
			Vendor:      it.Vendor,
		}
	}
	return draft
}

func newPaymentInitiationError(orderID string, err error) *PaymentInitiationError {
	e := &PaymentInitiationError{OrderID: orderID, Err: err}
	var rejected *payment.RejectedError
	switch {
	case errors.As(err, &rejected):
		e.Message = rejected.Message
	default:
		e.Message, _ = remote.MessageOf(err)
	}
	return e
}

func outcomeLabel(res *Result, err error) string {
	var (
		phoneErr  *InvalidPhoneError
		addrErr   *InvalidAddressError
		regionErr *UnsupportedPaymentRegionError
		methodErr *InvalidMethodError
		orderErr  *OrderCreationError
		timeout   *CheckoutTimeoutError
		initErr   *PaymentInitiationError
	)
	switch {
	case err == nil && res != nil:
		return string(res.Outcome)
	case errors.Is(err, ErrEmptyCart),
		errors.As(err, &phoneErr),
		errors.As(err, &addrErr),
		errors.As(err, &regionErr),
		errors.As(err, &methodErr):
		return "invalid"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &orderErr):
		return "order_failed"
	case errors.As(err, &initErr):
		return "payment_failed"
	default:
		return "error"
	}
}
