package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/models"
)

// MemoryRepo is an in-process Repository.
type MemoryRepo struct {
	mu     sync.Mutex
	orders map[string]models.Order
	seq    map[string]int
	next   int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders: make(map[string]models.Order),
		seq:    make(map[string]int),
	}
}

func (r *MemoryRepo) Insert(_ context.Context, o models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.orders[o.ID]; dup {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	r.orders[o.ID] = o.Clone()
	r.next++
	r.seq[o.ID] = r.next
	return nil
}

func (r *MemoryRepo) FindByID(_ context.Context, id string) (models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, models.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepo) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	return r.list(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r *MemoryRepo) ListAll(_ context.Context) ([]models.Order, error) {
	return r.list(func(models.Order) bool { return true }), nil
}

func (r *MemoryRepo) list(keep func(models.Order) bool) []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out
}

func (r *MemoryRepo) MarkDelivered(_ context.Context, id string, at time.Time) (models.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, false, models.ErrNotFound
	}
	if o.IsDelivered {
		return o.Clone(), false, nil
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	r.orders[id] = o
	return o.Clone(), true, nil
}
