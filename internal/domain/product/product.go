package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// DefaultVendorName is shown when the catalog carries no tenant name for a product.
const DefaultVendorName = "Vendor"

// Product is a catalog snapshot of an item offered by a tenant.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	// Stock is the available quantity known at lookup time.
	Stock  int
	Vendor Vendor
}

// Vendor identifies the tenant selling a product.
type Vendor struct {
	ID        string
	Name      string
	Subdomain string
}

// Catalog provides read-only product lookups.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}
