package orders

import (
	"context"
	"net/http"
	"time"

	"storefront/models"
	"storefront/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	gate *Gate
	hub  *Hub
}

// NewHandler builds the order endpoints. hub may be nil when the live feed is off.
func NewHandler(gate *Gate, hub *Hub) *Handler {
	return &Handler{gate: gate, hub: hub}
}

// placeOrderRequest mirrors the storefront's order payload. Prices and totals sent by the
// client are accepted for compatibility and ignored.
type placeOrderRequest struct {
	OrderItems []struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	} `json:"orderItems"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	TotalPrice      *models.Money          `json:"totalPrice,omitempty"`
}

// POST /api/orders
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req placeOrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid order payload")
		return
	}

	lines := make([]models.CartLine, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		lines = append(lines, models.CartLine{ProductID: it.Product, Quantity: it.Quantity, CatalogPriced: true})
	}

	order, err := h.gate.PlaceOrder(ctx, utils.GetCallerFromRequest(r), lines, req.ShippingAddress)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, order)
}

// GET /api/myorders
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.gate.ListMine(ctx, utils.GetCallerFromRequest(r))
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, orders)
}

// GET /api/orders and GET /api/orders?user=<id>
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	caller := utils.GetCallerFromRequest(r)

	var (
		orders []models.Order
		err    error
	)
	if userID := r.URL.Query().Get("user"); userID != "" {
		orders, err = h.gate.ListForUser(ctx, caller, userID)
	} else {
		orders, err = h.gate.ListAll(ctx, caller)
	}
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, orders)
}

// GET /api/orders/:id
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.gate.GetOrder(ctx, utils.GetCallerFromRequest(r), ps.ByName("id"))
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// PUT /api/orders/:id/deliver
func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.gate.MarkDelivered(ctx, utils.GetCallerFromRequest(r), ps.ByName("id"))
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// GET /api/orders/:id/invoice
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.gate.GetOrder(ctx, utils.GetCallerFromRequest(r), ps.ByName("id"))
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}

	pdf, err := RenderInvoice(order)
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="order-`+order.ID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
