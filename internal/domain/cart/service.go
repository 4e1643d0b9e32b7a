package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/tribetrade/storefront/internal/domain/buyer"
)

// Namespace is the fixed key prefix under which carts are persisted.
const Namespace = "tribe_cart"

// ErrSellerCannotBuy is returned when a seller (plug) account tries to add a
// product to a cart. Sellers cannot purchase; the rejection is surfaced to
// the caller but leaves the cart untouched.
var ErrSellerCannotBuy = errors.New("plug accounts cannot purchase drops")

// Storage persists a buyer's full line list. Implementations overwrite the
// previous list wholesale on Save; there are no merge semantics, last write
// wins.
type Storage interface {
	Load(ctx context.Context, buyerID string) ([]Line, error)
	Save(ctx context.Context, buyerID string, lines []Line) error
	Delete(ctx context.Context, buyerID string) error
}

// Service owns cart mutations and their persistence. Every mutation loads
// the current line list, applies the change, and writes the full list back.
type Service struct {
	storage Storage
}

// NewService creates a cart Service backed by the given Storage.
func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// Get rehydrates the buyer's cart from storage. A buyer with no persisted
// entry gets an empty cart.
func (s *Service) Get(ctx context.Context, buyerID string) (*Cart, error) {
	lines, err := s.storage.Load(ctx, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return &Cart{Lines: lines}, nil
}

// Add puts a product in the buyer's cart and persists the result. Seller
// accounts are rejected without touching stored state.
func (s *Service) Add(ctx context.Context, b buyer.Profile, line Line) (*Cart, error) {
	if b.IsPlug {
		return nil, ErrSellerCannotBuy
	}

	c, err := s.Get(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	c.Add(line)

	if err := s.storage.Save(ctx, b.ID, c.Lines); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Remove deletes a line and persists the result.
func (s *Service) Remove(ctx context.Context, buyerID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	c.Remove(productID)

	if err := s.storage.Save(ctx, buyerID, c.Lines); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// UpdateQuantity applies a quantity delta to a line and persists the result.
func (s *Service) UpdateQuantity(ctx context.Context, buyerID, productID string, delta int) (*Cart, error) {
	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	c.UpdateQuantity(productID, delta)

	if err := s.storage.Save(ctx, buyerID, c.Lines); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the buyer's cart and removes the persisted entry.
func (s *Service) Clear(ctx context.Context, buyerID string) error {
	if err := s.storage.Delete(ctx, buyerID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}
