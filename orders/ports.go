package orders

import (
	"context"
	"time"

	"storefront/models"
)

// Repository persists orders. Implementations must make MarkDelivered a single atomic
// conditional update so that concurrent calls produce one transition.
type Repository interface {
	Insert(ctx context.Context, o models.Order) error
	FindByID(ctx context.Context, id string) (models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	// MarkDelivered flips isDelivered to true. transitioned is false when the order was
	// already delivered. Missing orders yield models.ErrNotFound.
	MarkDelivered(ctx context.Context, id string, at time.Time) (o models.Order, transitioned bool, err error)
}

// Catalog resolves the products referenced by an order.
type Catalog interface {
	ResolveProduct(ctx context.Context, id string) (models.Product, error)
}

// Publisher receives order lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev models.OrderEvent) error
}
