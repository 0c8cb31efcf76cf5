package order

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// PaymentMethod is the payment method recorded on the order.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentCard        PaymentMethod = "card"
)

// Draft is the order submitted to the backend, built from a cart snapshot.
type Draft struct {
	Items         []DraftItem
	Subtotal      decimal.Decimal
	ShippingCost  decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Customer      Customer
	Address       Address
	Notes         string
}

// DraftItem represents a single line item in an order draft.
type DraftItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Vendor      product.Vendor
}

// Customer holds the contact details attached to an order.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Address is the delivery address of an order.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Order is the backend's reference to a created order.
type Order struct {
	ID     string
	Number string
	Status string
}

// Creator submits order drafts to the system of record.
type Creator interface {
	CreateOrder(ctx context.Context, draft Draft) (*Order, error)
}
