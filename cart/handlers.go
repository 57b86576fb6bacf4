package cart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"storefront/models"
	"storefront/utils"

	"github.com/julienschmidt/httprouter"
)

// ProductResolver looks up the product being added so its price can be snapshotted.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, id string) (models.Product, error)
}

// OrderPlacer turns a cart snapshot into an order for the caller.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, c models.Caller, lines []models.CartLine, addr models.ShippingAddress) (models.Order, error)
}

type Handler struct {
	store   Store
	catalog ProductResolver
	orders  OrderPlacer
}

func NewHandler(store Store, catalog ProductResolver, orders OrderPlacer) *Handler {
	return &Handler{store: store, catalog: catalog, orders: orders}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
}

// GET /api/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session := SessionFromContext(r.Context())
	c, err := h.store.Load(ctx, session)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c.View(session))
}

// POST /api/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req addItemRequest
	if err := utils.DecodeJSON(r, &req); err != nil || req.ProductID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "productId is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	p, err := h.catalog.ResolveProduct(ctx, req.ProductID)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}

	h.mutate(ctx, w, r, func(c *Cart) error { return c.AddItem(p, qty) })
}

// PUT /api/cart/items/:productId
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req updateItemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	productID := ps.ByName("productId")
	h.mutate(ctx, w, r, func(c *Cart) error {
		c.UpdateQuantity(productID, req.Quantity)
		return nil
	})
}

// DELETE /api/cart/items/:productId
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	productID := ps.ByName("productId")
	h.mutate(ctx, w, r, func(c *Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

// DELETE /api/cart
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session := SessionFromContext(r.Context())
	if err := h.store.Delete(ctx, session); err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, New().View(session))
}

// Checkout places an order from the session cart. The cart is cleared only once the order
// exists; any failure leaves it as it was.
//
// POST /api/cart/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req checkoutRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid checkout payload")
		return
	}

	session := SessionFromContext(r.Context())
	c, err := h.store.Load(ctx, session)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}

	order, err := h.orders.PlaceOrder(ctx, utils.GetCallerFromRequest(r), c.Lines(), req.ShippingAddress)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}

	if err := h.store.Delete(ctx, session); err != nil {
		// the order stands; a stale cart is the lesser problem
		slog.Warn("cart not cleared after checkout", "session", session, "order_id", order.ID, "err", err)
	}
	utils.RespondWithJSON(w, http.StatusCreated, order)
}

// mutate loads the session cart, applies fn and saves the result. Nothing is saved when fn
// fails. A signed-in caller is only noted in the log; the cart stays keyed by session.
func (h *Handler) mutate(ctx context.Context, w http.ResponseWriter, r *http.Request, fn func(*Cart) error) {
	session := SessionFromContext(r.Context())
	c, err := h.store.Load(ctx, session)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	if err := fn(c); err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	if err := h.store.Save(ctx, session, c); err != nil {
		utils.RespondWithDomainError(w, r, fmt.Errorf("save cart: %w", err))
		return
	}
	slog.Debug("cart updated",
		"session", session,
		"user_id", utils.GetUserIDFromRequest(r),
		"lines", c.Len())
	utils.RespondWithJSON(w, http.StatusOK, c.View(session))
}
