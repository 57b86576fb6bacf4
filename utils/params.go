package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"storefront/models"
)

// ParseProductFilter reads ?category= and ?search= from a catalog request. "All" means
// no category.
func ParseProductFilter(r *http.Request) models.ProductFilter {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	if strings.EqualFold(category, "all") {
		category = ""
	}
	return models.ProductFilter{
		Category: category,
		Search:   strings.TrimSpace(q.Get("search")),
	}
}

// DecodeJSON decodes a request body of at most 1 MB into v.
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
