package products

import (
	"context"
	"net/http"
	"time"

	"storefront/models"
	"storefront/utils"

	"github.com/julienschmidt/httprouter"
)

// Reader is the catalog as the HTTP layer and the cart see it.
type Reader interface {
	ResolveProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
}

type Handler struct {
	catalog Reader
}

func NewHandler(catalog Reader) *Handler {
	return &Handler{catalog: catalog}
}

// GET /api/products?category=&search=
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx, utils.ParseProductFilter(r))
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, products)
}

// GET /api/products/:id
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.catalog.ResolveProduct(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}
