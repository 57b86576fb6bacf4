package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storefront/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 5 * time.Second

// Service owns the order lifecycle: Placed -> Delivered.
type Service struct {
	repo    Repository
	catalog Catalog
	events  Publisher

	maxConcurrent int
	now           func() time.Time
	newID         func() string
}

func NewService(repo Repository, catalog Catalog, events Publisher, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		repo:          repo,
		catalog:       catalog,
		events:        events,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// PlaceOrder freezes lines into a new order owned by ownerUserID.
//
// Lines keep their snapshot unit price, even a zero one. Lines marked CatalogPriced are
// priced from the catalog at this moment. Every product must still resolve and be in stock or nothing is stored.
// The caller's cart is left alone: clearing it on success is the caller's job.
func (s *Service) PlaceOrder(ctx context.Context, ownerUserID string, lines []models.CartLine, addr models.ShippingAddress) (models.Order, error) {
	if len(lines) == 0 {
		return models.Order{}, models.ErrEmptyCart
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return models.Order{}, fmt.Errorf("line %q: %w", l.ProductID, models.ErrInvalidQuantity)
		}
	}

	items := make([]models.OrderItem, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range lines {
		g.Go(func() error {
			l := lines[idx]
			p, err := s.catalog.ResolveProduct(gctx, l.ProductID)
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("product %q: %w", l.ProductID, models.ErrProductUnavailable)
			}
			if err != nil {
				return fmt.Errorf("resolve product %q: %w", l.ProductID, err)
			}
			if !p.InStock {
				return fmt.Errorf("product %q: %w", l.ProductID, models.ErrOutOfStock)
			}
			items[idx] = freezeLine(l, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Order{}, err
	}

	total := models.ZeroMoney()
	for _, it := range items {
		total = total.Plus(it.Price.Times(it.Quantity))
	}

	order := models.Order{
		ID:              s.newID(),
		UserID:          ownerUserID,
		OrderItems:      items,
		ShippingAddress: addr,
		TotalPrice:      total,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, order); err != nil {
		return models.Order{}, fmt.Errorf("insert order: %w", err)
	}

	slog.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", ownerUserID),
		slog.Int("items", len(items)),
		slog.String("total", total.String()))
	s.emit(ctx, models.EventOrderPlaced, order)

	return order.Clone(), nil
}

// freezeLine copies what the order must remember about a line. The catalog price is used
// only for lines marked CatalogPriced.
func freezeLine(l models.CartLine, p models.Product) models.OrderItem {
	it := models.OrderItem{
		ProductID: l.ProductID,
		Name:      l.Name,
		Image:     l.Image,
		Price:     l.UnitPrice,
		Quantity:  l.Quantity,
	}
	if l.CatalogPriced {
		it.Price = p.Price
	}
	if it.Name == "" {
		it.Name = p.Name
	}
	if it.Image == "" {
		it.Image = p.Image
	}
	return it
}

// MarkDelivered moves an order to its terminal Delivered state. Repeating the call on a
// delivered order succeeds without a second event.
func (s *Service) MarkDelivered(ctx context.Context, orderID string, actingRole models.Role) (models.Order, error) {
	if actingRole != models.RoleAdmin {
		return models.Order{}, models.ErrForbidden
	}
	o, transitioned, err := s.repo.MarkDelivered(ctx, orderID, s.now().UTC())
	if err != nil {
		return models.Order{}, err
	}
	if transitioned {
		slog.InfoContext(ctx, "order delivered", slog.String("order_id", o.ID))
		s.emit(ctx, models.EventOrderDelivered, o)
	}
	return o.Clone(), nil
}

// GetOrder returns the order to its owner or an admin.
func (s *Service) GetOrder(ctx context.Context, orderID, requesterUserID string, requesterRole models.Role) (models.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if requesterRole != models.RoleAdmin && !o.OwnedBy(requesterUserID) {
		return models.Order{}, models.ErrForbidden
	}
	return o.Clone(), nil
}

// ListOrdersForUser returns userID's orders, newest first.
func (s *Service) ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListAllOrders returns every order, newest first. Admins only.
func (s *Service) ListAllOrders(ctx context.Context, actingRole models.Role) ([]models.Order, error) {
	if actingRole != models.RoleAdmin {
		return nil, models.ErrForbidden
	}
	return s.repo.ListAll(ctx)
}

// emit publishes after the state change has committed, so it outlives the request context.
func (s *Service) emit(ctx context.Context, kind string, o models.Order) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := models.OrderEvent{
		ID:         uuid.NewString(),
		Type:       kind,
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		At:         s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish order event failed",
			slog.String("type", kind),
			slog.String("order_id", o.ID),
			slog.Any("err", err))
	}
}
