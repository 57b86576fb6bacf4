package orders

import (
	"context"
	"errors"
	"fmt"

	"storefront/models"
)

// Gate is the only entry point handlers use. It checks the caller once and then picks the
// lifecycle operation the caller is allowed to reach.
type Gate struct {
	svc *Service
}

func NewGate(svc *Service) *Gate {
	return &Gate{svc: svc}
}

func requireCaller(c models.Caller) error {
	if !c.Authenticated() {
		return models.ErrUnauthenticated
	}
	return nil
}

func requireAdmin(c models.Caller) error {
	if err := requireCaller(c); err != nil {
		return err
	}
	if !c.IsAdmin() {
		return models.ErrForbidden
	}
	return nil
}

// PlaceOrder creates an order owned by the caller.
func (g *Gate) PlaceOrder(ctx context.Context, c models.Caller, lines []models.CartLine, addr models.ShippingAddress) (models.Order, error) {
	if err := requireCaller(c); err != nil {
		return models.Order{}, err
	}
	return g.svc.PlaceOrder(ctx, c.UserID, lines, addr)
}

// GetOrder hides orders the caller may not see behind the same error as a missing id.
func (g *Gate) GetOrder(ctx context.Context, c models.Caller, orderID string) (models.Order, error) {
	if err := requireCaller(c); err != nil {
		return models.Order{}, err
	}
	o, err := g.svc.GetOrder(ctx, orderID, c.UserID, c.Role)
	if errors.Is(err, models.ErrForbidden) || errors.Is(err, models.ErrNotFound) {
		return models.Order{}, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return o, err
}

// ListMine lists the caller's own orders.
func (g *Gate) ListMine(ctx context.Context, c models.Caller) ([]models.Order, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	return g.svc.ListOrdersForUser(ctx, c.UserID)
}

// ListForUser lists userID's orders. Customers may only ask for themselves.
func (g *Gate) ListForUser(ctx context.Context, c models.Caller, userID string) ([]models.Order, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if !c.IsAdmin() && userID != c.UserID {
		return nil, models.ErrForbidden
	}
	return g.svc.ListOrdersForUser(ctx, userID)
}

func (g *Gate) ListAll(ctx context.Context, c models.Caller) ([]models.Order, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	return g.svc.ListAllOrders(ctx, c.Role)
}

func (g *Gate) MarkDelivered(ctx context.Context, c models.Caller, orderID string) (models.Order, error) {
	if err := requireAdmin(c); err != nil {
		return models.Order{}, err
	}
	return g.svc.MarkDelivered(ctx, orderID, c.Role)
}

// WatchFeed reports whether the caller may subscribe to the live order feed.
func (g *Gate) WatchFeed(c models.Caller) error {
	return requireAdmin(c)
}
