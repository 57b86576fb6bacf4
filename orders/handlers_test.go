package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/globals"
	"storefront/models"

	"github.com/julienschmidt/httprouter"
)

type apiHarness struct {
	router *httprouter.Router
	events *recordingPublisher
}

func asCaller(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var c models.Caller
		switch r.Header.Get("X-Test-User") {
		case "alice":
			c = alice
		case "bob":
			c = bob
		case "root":
			c = admin
		}
		next(w, r.WithContext(context.WithValue(r.Context(), globals.CallerKey, c)), ps)
	}
}

func newAPI() *apiHarness {
	f := newFixture()
	h := NewHandler(NewGate(f.svc), nil)

	r := httprouter.New()
	r.POST("/api/orders", asCaller(h.Create))
	r.GET("/api/orders", asCaller(h.List))
	r.GET("/api/myorders", asCaller(h.Mine))
	r.GET("/api/orders/:id", asCaller(h.Get))
	r.PUT("/api/orders/:id/deliver", asCaller(h.Deliver))
	r.GET("/api/orders/:id/invoice", asCaller(h.Invoice))
	r.GET("/api/admin/orders/live", asCaller(h.Live))
	return &apiHarness{router: r, events: f.events}
}

func (a *apiHarness) do(user, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

const orderBody = `{
	"orderItems": [{"product": "A", "quantity": 2, "price": 0.01}, {"product": "B", "quantity": 1}],
	"shippingAddress": {"firstName": "Ada", "lastName": "Lovelace", "city": "London"},
	"totalPrice": 0.02
}`

func (a *apiHarness) place(t *testing.T, user string) models.Order {
	t.Helper()
	rec := a.do(user, http.MethodPost, "/api/orders", orderBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	var o models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestCreateIgnoresClientPrices(t *testing.T) {
	a := newAPI()
	o := a.place(t, "alice")

	if o.TotalPrice.String() != "25.00" {
		t.Fatalf("total = %s, want catalog-priced 25.00", o.TotalPrice)
	}
	if o.UserID != "alice" || o.ShippingAddress.City != "London" {
		t.Fatalf("order = %+v", o)
	}
}

func TestCreateErrors(t *testing.T) {
	a := newAPI()
	tests := []struct {
		name string
		user string
		body string
		want int
	}{
		{"anonymous", "", orderBody, http.StatusUnauthorized},
		{"bad json", "alice", `{`, http.StatusBadRequest},
		{"empty", "alice", `{"orderItems": []}`, http.StatusBadRequest},
		{"zero quantity", "alice", `{"orderItems": [{"product": "A", "quantity": 0}]}`, http.StatusBadRequest},
		{"unknown product", "alice", `{"orderItems": [{"product": "zzz", "quantity": 1}]}`, http.StatusUnprocessableEntity},
		{"out of stock", "alice", `{"orderItems": [{"product": "W", "quantity": 1}]}`, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := a.do(tc.user, http.MethodPost, "/api/orders", tc.body); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestGetMasksForeignOrders(t *testing.T) {
	a := newAPI()
	o := a.place(t, "alice")

	foreign := a.do("bob", http.MethodGet, "/api/orders/"+o.ID, "")
	missing := a.do("bob", http.MethodGet, "/api/orders/does-not-exist", "")
	if foreign.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("foreign=%d missing=%d", foreign.Code, missing.Code)
	}
	if foreign.Body.String() != missing.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", foreign.Body.String(), missing.Body.String())
	}

	if rec := a.do("alice", http.MethodGet, "/api/orders/"+o.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("owner: %d", rec.Code)
	}
}

func TestDeliverFlow(t *testing.T) {
	a := newAPI()
	o := a.place(t, "alice")
	path := "/api/orders/" + o.ID + "/deliver"

	if rec := a.do("alice", http.MethodPut, path, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("customer deliver: %d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		rec := a.do("root", http.MethodPut, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("admin deliver #%d: %d", i+1, rec.Code)
		}
		var got models.Order
		_ = json.Unmarshal(rec.Body.Bytes(), &got)
		if !got.IsDelivered || got.DeliveredAt == nil {
			t.Fatalf("order = %+v", got)
		}
	}
	if n := a.events.count(models.EventOrderDelivered); n != 1 {
		t.Fatalf("delivered events = %d", n)
	}
	if rec := a.do("root", http.MethodPut, "/api/orders/nope/deliver", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing deliver: %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	a := newAPI()
	a.place(t, "alice")
	a.place(t, "bob")
	a.place(t, "alice")

	count := func(rec *httptest.ResponseRecorder) int {
		var os []models.Order
		_ = json.Unmarshal(rec.Body.Bytes(), &os)
		return len(os)
	}

	if rec := a.do("alice", http.MethodGet, "/api/myorders", ""); rec.Code != http.StatusOK || count(rec) != 2 {
		t.Fatalf("mine: %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do("root", http.MethodGet, "/api/orders", ""); count(rec) != 3 {
		t.Fatalf("admin all: %s", rec.Body.String())
	}
	if rec := a.do("root", http.MethodGet, "/api/orders?user=bob", ""); count(rec) != 1 {
		t.Fatalf("admin by user: %s", rec.Body.String())
	}
	if rec := a.do("alice", http.MethodGet, "/api/orders", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("customer all: %d", rec.Code)
	}
	if rec := a.do("alice", http.MethodGet, "/api/orders?user=bob", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("customer other user: %d", rec.Code)
	}
	if rec := a.do("", http.MethodGet, "/api/myorders", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous mine: %d", rec.Code)
	}
}

func TestInvoiceEndpoint(t *testing.T) {
	a := newAPI()
	o := a.place(t, "alice")

	rec := a.do("alice", http.MethodGet, "/api/orders/"+o.ID+"/invoice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", rec.Body.Bytes()[:min(16, rec.Body.Len())])
	}

	if rec := a.do("bob", http.MethodGet, "/api/orders/"+o.ID+"/invoice", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign invoice: %d", rec.Code)
	}
}

func TestLiveWithoutHub(t *testing.T) {
	a := newAPI()
	if rec := a.do("root", http.MethodGet, "/api/admin/orders/live", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
