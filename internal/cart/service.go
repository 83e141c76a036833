package cart

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
)

// ChangeObserver is notified after every cart mutation with the new contents.
type ChangeObserver interface {
	CartChanged(ctx context.Context, sessionID string, cart Cart)
}

// Service exposes session cart operations.
type Service interface {
	Get(ctx context.Context, sessionID string) (Cart, error)
	Add(ctx context.Context, sessionID string, line Line) (Cart, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (Cart, error)
	Remove(ctx context.Context, sessionID, productID string) (Cart, error)
	Clear(ctx context.Context, sessionID string) (Cart, error)
}

type service struct {
	store    Store
	observer ChangeObserver
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided store. The
// observer may be nil when no intent synchronization is wired.
func NewService(store Store, observer ChangeObserver, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	return &service{store: store, observer: observer, logg: logg}, nil
}

// Get returns the current cart for the session.
func (s *service) Get(ctx context.Context, sessionID string) (Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return Cart{}, err
	}
	return s.store.Load(ctx, sessionID)
}

// Add inserts the line, or replaces the stored quantity when the product
// is already present. Adding the same product twice does not accumulate.
func (s *service) Add(ctx context.Context, sessionID string, line Line) (Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return Cart{}, err
	}
	if err := validateLine(line); err != nil {
		return Cart{}, err
	}

	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}

	if i := cart.find(line.ProductID); i >= 0 {
		cart.Lines[i].Quantity = line.Quantity
		cart.Lines[i].UnitPrice = line.UnitPrice
		cart.Lines[i].Name = line.Name
		cart.Lines[i].Image = line.Image
		cart.Lines[i].Variant = line.Variant
		cart.Lines[i].Color = line.Color
	} else {
		cart.Lines = append(cart.Lines, line)
	}

	return s.persist(ctx, sessionID, cart)
}

// UpdateQuantity sets the quantity of an existing line. Quantities below
// one leave the cart untouched; removal goes through Remove.
func (s *service) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return Cart{}, err
	}
	if strings.TrimSpace(productID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}

	if quantity < 1 {
		return cart, nil
	}

	i := cart.find(productID)
	if i < 0 {
		return Cart{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
	}
	cart.Lines[i].Quantity = quantity

	return s.persist(ctx, sessionID, cart)
}

// Remove drops the line for the product if present.
func (s *service) Remove(ctx context.Context, sessionID, productID string) (Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return Cart{}, err
	}
	if strings.TrimSpace(productID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}

	i := cart.find(productID)
	if i < 0 {
		return cart, nil
	}
	cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)

	return s.persist(ctx, sessionID, cart)
}

// Clear empties the cart and removes it from storage.
func (s *service) Clear(ctx context.Context, sessionID string) (Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return Cart{}, err
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return Cart{}, err
	}
	empty := Cart{}
	s.notify(ctx, sessionID, empty)
	return empty, nil
}

func (s *service) persist(ctx context.Context, sessionID string, cart Cart) (Cart, error) {
	if err := s.store.Save(ctx, sessionID, cart); err != nil {
		return Cart{}, err
	}
	s.notify(ctx, sessionID, cart)
	return cart, nil
}

func (s *service) notify(ctx context.Context, sessionID string, cart Cart) {
	if s.observer == nil {
		return
	}
	s.observer.CartChanged(ctx, sessionID, cart)
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}

func validateLine(line Line) error {
	if strings.TrimSpace(line.ProductID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(line.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if line.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if line.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	return nil
}
