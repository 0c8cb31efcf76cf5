package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Store is a cart bound to one storage key. All methods are safe for
// concurrent use; every mutation is persisted before it returns.
type Store struct {
	mu      sync.Mutex
	storage Storage
	key     string
	items   []LineItem
}

// Open loads the cart stored under key. A missing document yields an empty
// cart.
func Open(ctx context.Context, storage Storage, key string) (*Store, error) {
	s := &Store{storage: storage, key: key}

	doc, err := storage.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNoDocument):
		return s, nil
	case err != nil:
		return nil, errors.Wrapf(err, "load cart %q", key)
	}

	items, err := DecodeDocument(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "load cart %q", key)
	}
	s.items = items
	return s, nil
}

// Key returns the storage key of the cart.
func (s *Store) Key() string { return s.key }

// AddItem adds quantity units of p. An existing line keeps its price and
// name; its stock snapshot is refreshed from p.
func (s *Store) AddItem(ctx context.Context, p product.Product, quantity int) error {
	if p.ID == "" {
		return ErrMissingProductID
	}
	if quantity < 1 {
		return &InvalidQuantityError{ProductID: p.ID, Quantity: quantity}
	}

	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		i := indexOf(items, p.ID)
		if i < 0 {
			if quantity > p.Stock {
				return nil, &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: quantity}
			}
			return append(items, newLineItem(p, quantity)), nil
		}

		next := items[i].Quantity + quantity
		if next > p.Stock {
			return nil, &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: next}
		}
		items[i].Quantity = next
		items[i].Stock = p.Stock
		return items, nil
	})
}

// RemoveItem deletes the line for productID. Removing an absent product is
// not an error and does not touch storage.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	present := indexOf(s.items, productID) >= 0
	s.mu.Unlock()
	if !present {
		return nil
	}

	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if i := indexOf(items, productID); i >= 0 {
			return slices.Delete(items, i, i+1), nil
		}
		return items, nil
	})
}

// UpdateQuantity sets the quantity of an existing line. Quantities below one
// behave like RemoveItem, so they never fail for absent lines.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, productID)
	}
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return nil, ErrNotInCart
		}
		if quantity > items[i].Stock {
			return nil, &InsufficientStockError{ProductID: productID, Available: items[i].Stock, Requested: quantity}
		}
		items[i].Quantity = quantity
		return items, nil
	})
}

// Clear empties the cart and persists the empty document.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]LineItem) ([]LineItem, error) {
		return nil, nil
	})
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.items)
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// Quantity returns the quantity held for productID, zero when absent.
func (s *Store) Quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.items, productID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

// Contains reports whether productID has a line.
func (s *Store) Contains(productID string) bool {
	return s.Quantity(productID) > 0
}

// Totals derives item count, subtotal, shipping and total from current lines.
func (s *Store) Totals() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]pricing.Line, len(s.items))
	for i, it := range s.items {
		lines[i] = it.line()
	}
	return pricing.Calculate(lines)
}

// mutate applies f to a copy of the items and persists the result. The
// in-memory state only changes when both f and the save succeed.
func (s *Store) mutate(ctx context.Context, f func([]LineItem) ([]LineItem, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := f(slices.Clone(s.items))
	if err != nil {
		return err
	}
	if err := s.storage.Save(ctx, s.key, EncodeDocument(next)); err != nil {
		return errors.Wrapf(err, "save cart %q", s.key)
	}
	s.items = next
	return nil
}

func indexOf(items []LineItem, productID string) int {
	return slices.IndexFunc(items, func(it LineItem) bool {
		return it.ProductID == productID
	})
}
