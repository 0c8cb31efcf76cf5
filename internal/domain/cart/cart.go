// Package cart implements the session shopping cart: an ordered set of line
// items keyed by product, persisted as a single document after every change.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

var (
	// ErrNotInCart is returned when updating a product that has no line.
	ErrNotInCart = errors.New("product not in cart")
	// ErrMissingProductID is returned when a product without an identifier is added.
	ErrMissingProductID = errors.New("product id required")
	// ErrNoDocument is returned by Storage implementations when no cart has
	// been saved under a key yet.
	ErrNoDocument = errors.New("cart document not found")
)

// InsufficientStockError indicates the requested quantity exceeds known stock.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d in stock for product %s (requested %d)", e.Available, e.ProductID, e.Requested)
}

// InvalidQuantityError indicates a non-positive quantity on add.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// LineItem is one product entry in the cart. Price, name, stock and vendor
// are snapshotted when the product is first added.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Stock     int
	Vendor    product.Vendor
}

// LineTotal returns UnitPrice * Quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.line().Total()
}

func (l LineItem) line() pricing.Line {
	return pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
}

func newLineItem(p product.Product, quantity int) LineItem {
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
		Stock:     p.Stock,
		Vendor:    p.Vendor,
	}
}

// Storage persists cart documents by key. Save overwrites the whole document.
type Storage interface {
	// Load returns ErrNoDocument when nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
}
