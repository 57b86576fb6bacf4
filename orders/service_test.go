package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/models"

	"golang.org/x/sync/errgroup"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]models.Product
	calls    int
}

func newFakeCatalog(ps ...models.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]models.Product{}}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) ResolveProduct(_ context.Context, id string) (models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	p, ok := c.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == kind {
			n++
		}
	}
	return n
}

var (
	headphones = models.Product{ID: "A", Name: "Headphones", Image: "a.jpg", Price: models.MustMoney("10.00"), InStock: true}
	backpack   = models.Product{ID: "B", Name: "Backpack", Image: "b.jpg", Price: models.MustMoney("5.00"), InStock: true}
	watch      = models.Product{ID: "W", Name: "Watch", Price: models.MustMoney("99.00"), InStock: false}
)

// cancelOnWrite cancels the request context as soon as a write commits.
type cancelOnWrite struct {
	Repository
	cancel context.CancelFunc
}

func (r cancelOnWrite) Insert(ctx context.Context, o models.Order) error {
	defer r.cancel()
	return r.Repository.Insert(ctx, o)
}

func (r cancelOnWrite) MarkDelivered(ctx context.Context, id string, at time.Time) (models.Order, bool, error) {
	defer r.cancel()
	return r.Repository.MarkDelivered(ctx, id, at)
}

// ctxPublisher fails like a broker client does when handed a dead context.
type ctxPublisher struct {
	recordingPublisher
}

func (p *ctxPublisher) Publish(ctx context.Context, ev models.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.recordingPublisher.Publish(ctx, ev)
}

type fixture struct {
	svc     *Service
	repo    *MemoryRepo
	catalog *fakeCatalog
	events  *recordingPublisher
	clock   time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:    NewMemoryRepo(),
		catalog: newFakeCatalog(headphones, backpack, watch),
		events:  &recordingPublisher{},
		clock:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.repo, f.catalog, f.events, 4)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func cartLines(ls ...models.CartLine) []models.CartLine { return ls }

func line(p models.Product, qty int) models.CartLine {
	return models.CartLine{ProductID: p.ID, Name: p.Name, Image: p.Image, UnitPrice: p.Price, Quantity: qty}
}

func TestPlaceOrderFreezesSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	snapshot := line(headphones, 2)
	snapshot.UnitPrice = models.MustMoney("8.00") // price when it was added to the cart

	o, err := f.svc.PlaceOrder(ctx, "u1", cartLines(snapshot, line(backpack, 1)), models.ShippingAddress{City: "Springfield"})
	if err != nil {
		t.Fatal(err)
	}
	if o.ID == "" || o.UserID != "u1" || o.IsDelivered {
		t.Fatalf("unexpected order %+v", o)
	}
	if got := o.TotalPrice.String(); got != "21.00" {
		t.Fatalf("total = %s, want 21.00", got)
	}
	if !o.OrderItems[0].Price.Equal(models.MustMoney("8.00")) {
		t.Fatalf("snapshot price lost: %s", o.OrderItems[0].Price)
	}
	if f.events.count(models.EventOrderPlaced) != 1 {
		t.Fatal("order.placed not emitted")
	}

	stored, err := f.repo.FindByID(ctx, o.ID)
	if err != nil || !stored.TotalPrice.Equal(o.TotalPrice) {
		t.Fatalf("stored %+v err %v", stored, err)
	}
}

func TestPlaceOrderKeepsZeroSnapshot(t *testing.T) {
	f := newFixture()

	free := line(headphones, 2)
	free.UnitPrice = models.ZeroMoney() // added during a giveaway

	o, err := f.svc.PlaceOrder(context.Background(), "u1", cartLines(free, line(backpack, 1)), models.ShippingAddress{})
	if err != nil {
		t.Fatal(err)
	}
	if !o.OrderItems[0].Price.IsZero() {
		t.Fatalf("zero snapshot repriced to %s", o.OrderItems[0].Price)
	}
	if got := o.TotalPrice.String(); got != "5.00" {
		t.Fatalf("total = %s, want 5.00", got)
	}
}

func TestPlaceOrderPricesBareLinesFromCatalog(t *testing.T) {
	f := newFixture()

	o, err := f.svc.PlaceOrder(context.Background(), "u1",
		cartLines(models.CartLine{ProductID: "A", Quantity: 3, CatalogPriced: true}), models.ShippingAddress{})
	if err != nil {
		t.Fatal(err)
	}
	it := o.OrderItems[0]
	if it.Name != "Headphones" || it.Image != "a.jpg" || it.Price.String() != "10.00" {
		t.Fatalf("item = %+v", it)
	}
	if o.TotalPrice.String() != "30.00" {
		t.Fatalf("total = %s", o.TotalPrice)
	}
}

func TestPlaceOrderIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		lines []models.CartLine
		want  error
	}{
		{"empty cart", nil, models.ErrEmptyCart},
		{"bad quantity", cartLines(line(headphones, 1), line(backpack, 0)), models.ErrInvalidQuantity},
		{"unknown product", cartLines(line(headphones, 1), models.CartLine{ProductID: "gone", Quantity: 1}), models.ErrProductUnavailable},
		{"out of stock", cartLines(line(headphones, 1), line(watch, 1)), models.ErrOutOfStock},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.PlaceOrder(context.Background(), "u1", tc.lines, models.ShippingAddress{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			all, _ := f.repo.ListAll(context.Background())
			if len(all) != 0 {
				t.Fatalf("%d orders persisted after failure", len(all))
			}
			if len(f.events.events) != 0 {
				t.Fatal("event emitted for a failed order")
			}
		})
	}
}

func TestPlaceOrderLeavesCallerLinesAlone(t *testing.T) {
	f := newFixture()
	lines := cartLines(line(headphones, 1), models.CartLine{ProductID: "gone", Quantity: 1})
	before := fmt.Sprint(lines)

	_, _ = f.svc.PlaceOrder(context.Background(), "u1", lines, models.ShippingAddress{})
	if fmt.Sprint(lines) != before {
		t.Fatal("PlaceOrder mutated the cart snapshot")
	}
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.PlaceOrder(ctx, "u1", cartLines(line(headphones, 1)), models.ShippingAddress{})

	first, err := f.svc.MarkDelivered(ctx, o.ID, models.RoleAdmin)
	if err != nil || !first.IsDelivered || first.DeliveredAt == nil {
		t.Fatalf("first = %+v err %v", first, err)
	}
	second, err := f.svc.MarkDelivered(ctx, o.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !second.DeliveredAt.Equal(*first.DeliveredAt) {
		t.Fatal("second call moved deliveredAt")
	}
	if n := f.events.count(models.EventOrderDelivered); n != 1 {
		t.Fatalf("delivered events = %d, want 1", n)
	}
}

func TestMarkDeliveredConcurrentAdmins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.PlaceOrder(ctx, "u1", cartLines(line(headphones, 1)), models.ShippingAddress{})
	fixed := f.clock
	f.svc.now = func() time.Time { return fixed }

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := f.svc.MarkDelivered(ctx, o.ID, models.RoleAdmin)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := f.events.count(models.EventOrderDelivered); n != 1 {
		t.Fatalf("delivered events = %d, want 1", n)
	}
}

func TestMarkDeliveredRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.PlaceOrder(ctx, "u1", cartLines(line(headphones, 1)), models.ShippingAddress{})

	if _, err := f.svc.MarkDelivered(ctx, o.ID, models.RoleCustomer); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("customer: err = %v", err)
	}
	if _, err := f.svc.MarkDelivered(ctx, "missing", models.RoleAdmin); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
	stored, _ := f.repo.FindByID(ctx, o.ID)
	if stored.IsDelivered {
		t.Fatal("rejected call delivered the order")
	}
}

func TestGetOrderAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.PlaceOrder(ctx, "owner", cartLines(line(headphones, 1)), models.ShippingAddress{})

	if _, err := f.svc.GetOrder(ctx, o.ID, "owner", models.RoleCustomer); err != nil {
		t.Fatalf("owner: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, o.ID, "admin-1", models.RoleAdmin); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, o.ID, "stranger", models.RoleCustomer); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("stranger: err = %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, "missing", "owner", models.RoleCustomer); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
}

func TestListsAreNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var ids []string
	for _, user := range []string{"u1", "u2", "u1"} {
		o, err := f.svc.PlaceOrder(ctx, user, cartLines(line(backpack, 1)), models.ShippingAddress{})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, o.ID)
	}

	mine, _ := f.svc.ListOrdersForUser(ctx, "u1")
	if len(mine) != 2 || mine[0].ID != ids[2] || mine[1].ID != ids[0] {
		t.Fatalf("u1 orders = %v", orderIDs(mine))
	}

	all, err := f.svc.ListAllOrders(ctx, models.RoleAdmin)
	if err != nil || len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("all = %v err %v", orderIDs(all), err)
	}

	if _, err := f.svc.ListAllOrders(ctx, models.RoleCustomer); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("customer list all: err = %v", err)
	}
}

func orderIDs(os []models.Order) []string {
	ids := make([]string, len(os))
	for i, o := range os {
		ids[i] = o.ID
	}
	return ids
}

func TestEventsSurviveRequestCancellation(t *testing.T) {
	repo := NewMemoryRepo()
	events := &ctxPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(cancelOnWrite{Repository: repo, cancel: cancel}, newFakeCatalog(headphones), events, 2)

	o, err := svc.PlaceOrder(ctx, "u1", cartLines(line(headphones, 1)), models.ShippingAddress{})
	if err != nil {
		t.Fatal(err)
	}
	if events.count(models.EventOrderPlaced) != 1 {
		t.Fatal("order.placed lost when the request went away")
	}

	ctx, cancel = context.WithCancel(context.Background())
	svc.repo = cancelOnWrite{Repository: repo, cancel: cancel}
	if _, err := svc.MarkDelivered(ctx, o.ID, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if events.count(models.EventOrderDelivered) != 1 {
		t.Fatal("order.delivered lost when the request went away")
	}
}
