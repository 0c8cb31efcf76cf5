package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/remote"
	"github.com/xenking/kart-storefront/internal/events"
	"github.com/xenking/kart-storefront/internal/storage/memory"
)

type mockCreator struct {
	mu     sync.Mutex
	order  *order.Order
	err    error
	block  bool
	drafts []order.Draft
}

func (m *mockCreator) CreateOrder(ctx context.Context, draft order.Draft) (*order.Order, error) {
	m.mu.Lock()
	m.drafts = append(m.drafts, draft)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockCreator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts)
}

type mockInitiator struct {
	init   *payment.Initiation
	err    error
	phones []string
	orders []string
}

func (m *mockInitiator) InitiatePayment(_ context.Context, orderID, phone string) (*payment.Initiation, error) {
	m.orders = append(m.orders, orderID)
	m.phones = append(m.phones, phone)
	return m.init, m.err
}

type mockChecker struct {
	statuses []payment.Status
	calls    int
}

func (m *mockChecker) PaymentStatus(_ context.Context, id string) (*payment.Attempt, error) {
	st := m.statuses[min(m.calls, len(m.statuses)-1)]
	m.calls++
	return &payment.Attempt{ID: id, Status: st}, nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *cart.Store
	creator   *mockCreator
	initiator *mockInitiator
	checker   *mockChecker
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		creator:   &mockCreator{order: &order.Order{ID: "101", Number: "ORD-101", Status: "pending"}},
		initiator: &mockInitiator{init: &payment.Initiation{PaymentID: "pay-9", CheckoutRequestID: "ws_CO_1"}},
		checker:   &mockChecker{statuses: []payment.Status{payment.StatusSuccessful}},
		events:    &recordingPublisher{},
	}
	poller := payment.NewPoller(f.checker, payment.WithInterval(time.Millisecond))

	svc, err := NewService(f.creator, f.initiator, poller, Config{OrderTimeout: time.Second}, nil,
		WithEvents(f.events),
		WithClock(func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	f.svc = svc

	store, err := cart.Open(context.Background(), memory.New(), "session-1")
	require.NoError(t, err)
	f.store = store
	return f
}

func (f *fixture) fill(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	vendor := product.Vendor{ID: "7", Name: "Duka", Subdomain: "duka"}
	require.NoError(t, f.store.AddItem(ctx, product.Product{ID: "1", Name: "Kiondo", Price: decimal.NewFromInt(500), Stock: 5, Vendor: vendor}, 2))
	require.NoError(t, f.store.AddItem(ctx, product.Product{ID: "2", Name: "Kanga", Price: decimal.NewFromInt(1000), Stock: 5, Vendor: vendor}, 1))
}

func validRequest(method Method) Request {
	return Request{
		Method: method,
		Customer: Customer{
			Name:  "Wanjiru Kamau",
			Email: "wanjiru@example.com",
			Phone: "254712345678",
		},
		Address: Address{
			Street:  "Moi Avenue 12",
			City:    "Nairobi",
			Country: "Kenya",
		},
		Notes: "Leave at gate",
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodMobileMoney))
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.creator.calls())
	assert.Empty(t, f.initiator.orders)
}

func TestCheckout_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown method",
			mutate: func(r *Request) { r.Method = "bitcoin" },
			check: func(t *testing.T, err error) {
				var e *InvalidMethodError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "bitcoin", e.Method)
			},
		},
		{
			name:   "phone without country code prefix 7",
			mutate: func(r *Request) { r.Customer.Phone = "254112345678" },
			check: func(t *testing.T, err error) {
				var e *InvalidPhoneError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name:   "phone too short",
			mutate: func(r *Request) { r.Customer.Phone = "2547123" },
			check: func(t *testing.T, err error) {
				var e *InvalidPhoneError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "missing street and city",
			mutate: func(r *Request) {
				r.Address.Street = "  "
				r.Address.City = ""
			},
			check: func(t *testing.T, err error) {
				var e *InvalidAddressError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, []string{"street", "city"}, e.Fields)
			},
		},
		{
			name:   "bad email",
			mutate: func(r *Request) { r.Customer.Email = "not-an-email" },
			check: func(t *testing.T, err error) {
				var e *InvalidAddressError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, []string{"email"}, e.Fields)
			},
		},
		{
			name:   "unsupported region",
			mutate: func(r *Request) { r.Address.Country = "Uganda" },
			check: func(t *testing.T, err error) {
				var e *UnsupportedPaymentRegionError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "Uganda", e.Country)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fill(t)
			req := validRequest(MethodMobileMoney)
			tt.mutate(&req)

			_, err := f.svc.Checkout(context.Background(), f.store, req)
			tt.check(t, err)
			assert.Zero(t, f.creator.calls(), "no network call on validation failure")
			assert.Equal(t, 2, f.store.Len())
		})
	}
}

func TestCheckout_PhoneIgnoredForOtherMethods(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	req := validRequest(MethodCard)
	req.Customer.Phone = "garbage"
	req.Address.Country = "Uganda"

	res, err := f.svc.Checkout(context.Background(), f.store, req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCardRedirect, res.Outcome)
}

func TestCheckout_MobileMoney(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	req := validRequest(MethodMobileMoney)
	req.Customer.Phone = "0712 345 678"
	req.Address.Country = "KE"

	res, err := f.svc.Checkout(context.Background(), f.store, req)
	require.NoError(t, err)

	assert.Equal(t, OutcomePendingConfirmation, res.Outcome)
	assert.Equal(t, "pay-9", res.PaymentID)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, "101", res.OrderID)
	assert.True(t, decimal.NewFromInt(2000).Equal(res.Amount))
	assert.Equal(t, 2, f.store.Len(), "cart kept until payment confirmed")

	assert.Equal(t, []string{"101"}, f.initiator.orders)
	assert.Equal(t, []string{"254712345678"}, f.initiator.phones)

	require.Equal(t, 1, f.creator.calls())
	draft := f.creator.drafts[0]
	assert.Equal(t, order.PaymentMobileMoney, draft.PaymentMethod)
	assert.True(t, decimal.NewFromInt(2000).Equal(draft.Subtotal))
	assert.True(t, draft.ShippingCost.IsZero())
	assert.True(t, decimal.NewFromInt(2000).Equal(draft.Total))
	require.Len(t, draft.Items, 2)
	assert.Equal(t, "Kiondo", draft.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(1000).Equal(draft.Items[0].Total))
	assert.Equal(t, "7", draft.Items[0].Vendor.ID)
	assert.Equal(t, "Leave at gate", draft.Notes)
	assert.Equal(t, "254712345678", draft.Customer.Phone)

	assert.Equal(t, []events.Type{events.PaymentInitiated}, f.events.types())
	assert.Equal(t, "session-1", f.events.events[0].SessionID)
}

func TestCheckout_Cash(t *testing.T) {
	f := newFixture(t)
	f.fill(t)

	res, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodCash))
	require.NoError(t, err)
	assert.Equal(t, OutcomePayOnDelivery, res.Outcome)
	assert.Equal(t, "ORD-101", res.OrderNumber)
	assert.Empty(t, res.PaymentID)
	assert.Zero(t, f.store.Len(), "cash orders clear the cart")
	assert.Empty(t, f.initiator.orders)
	assert.Equal(t, []events.Type{events.OrderPlaced}, f.events.types())
}

func TestCheckout_Card(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddItem(context.Background(), product.Product{ID: "1", Name: "Mug", Price: decimal.NewFromInt(300), Stock: 2}, 1))

	res, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodCard))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCardRedirect, res.Outcome)
	assert.Equal(t, "101", res.OrderID)
	assert.True(t, decimal.NewFromInt(499).Equal(res.Amount))
	assert.Equal(t, 1, f.store.Len())
	assert.Empty(t, f.initiator.orders)
}

func TestCheckout_OrderCreationFailure(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.creator.err = &remote.ResponseError{Op: "create order", Status: 400, Message: "Product 2 is out of stock"}

	_, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodMobileMoney))
	var e *OrderCreationError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Product 2 is out of stock", e.Message)
	assert.Equal(t, "Product 2 is out of stock", Message(err))
	assert.Empty(t, f.initiator.orders)
	assert.Equal(t, 2, f.store.Len())
}

func TestCheckout_OrderCreationNetworkFailure(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.creator.err = &remote.NetworkError{Op: "create order", Err: errors.New("dial tcp: connection refused")}

	_, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodCash))
	var e *OrderCreationError
	require.ErrorAs(t, err, &e)
	assert.True(t, remote.IsNetwork(err))
	assert.Equal(t, msgNetwork, Message(err))
	assert.Equal(t, 2, f.store.Len())
}

func TestCheckout_OrderTimeout(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.creator.block = true
	f.svc.cfg.OrderTimeout = 10 * time.Millisecond

	_, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodCash))
	var e *CheckoutTimeoutError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 2, f.store.Len())
}

func TestCheckout_CallerCancelled(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.creator.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := f.svc.Checkout(ctx, f.store, validRequest(MethodCash))
	require.ErrorIs(t, err, context.Canceled)
	var timeout *CheckoutTimeoutError
	assert.False(t, errors.As(err, &timeout))
}

func TestCheckout_PaymentInitiationRejected(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.initiator.init = nil
	f.initiator.err = &payment.RejectedError{Message: "Insufficient balance"}

	_, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodMobileMoney))
	var e *PaymentInitiationError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "101", e.OrderID)
	assert.Equal(t, "Insufficient balance", e.Message)
	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, []events.Type{events.OrderPlaced}, f.events.types())
}

func TestCheckout_PublishFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.events.err = errors.New("broker down")

	res, err := f.svc.Checkout(context.Background(), f.store, validRequest(MethodCash))
	require.NoError(t, err)
	assert.Equal(t, OutcomePayOnDelivery, res.Outcome)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.checker.statuses = []payment.Status{payment.StatusPending, payment.StatusPending, payment.StatusSuccessful}

	a, err := f.svc.ConfirmPayment(context.Background(), f.store, "pay-9")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccessful, a.Status)
	assert.Equal(t, 3, f.checker.calls)
	assert.Zero(t, f.store.Len())
	require.Equal(t, []events.Type{events.PaymentConfirmed}, f.events.types())
	assert.True(t, decimal.NewFromInt(2000).Equal(f.events.events[0].Amount))
}

func TestConfirmPayment_Failed(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.checker.statuses = []payment.Status{payment.StatusFailed}

	_, err := f.svc.ConfirmPayment(context.Background(), f.store, "pay-9")
	var failed *payment.FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, []events.Type{events.PaymentFailed}, f.events.types())
}

func TestConfirmPayment_WithoutPaymentID(t *testing.T) {
	f := newFixture(t)
	f.fill(t)

	a, err := f.svc.ConfirmPayment(context.Background(), f.store, "")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Zero(t, f.checker.calls)
	assert.Zero(t, f.store.Len())
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"254712345678":      "254712345678",
		"+254712345678":     "254712345678",
		"0712345678":        "254712345678",
		"0712-345-678":      "254712345678",
		"712345678":         "254712345678",
		" +254 712 345 678": "254712345678",
		"0112345678":        "0112345678",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}
