package models

import "time"

// OrderItem is a frozen copy of a cart line at checkout.
type OrderItem struct {
	ProductID string `json:"product" bson:"product"`
	Name      string `json:"name" bson:"name"`
	Image     string `json:"image" bson:"image"`
	Price     Money  `json:"price" bson:"price"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

type ShippingAddress struct {
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
	Email     string `json:"email" bson:"email"`
	Phone     string `json:"phone" bson:"phone"`
	Address   string `json:"address" bson:"address"`
	City      string `json:"city" bson:"city"`
	State     string `json:"state" bson:"state"`
	ZipCode   string `json:"zipCode" bson:"zipCode"`
}

// Order is a placed order. Everything except IsDelivered and DeliveredAt is immutable
// once it has been created.
type Order struct {
	ID              string          `json:"_id" bson:"_id"`
	UserID          string          `json:"user" bson:"user"`
	OrderItems      []OrderItem     `json:"orderItems" bson:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shippingAddress"`
	TotalPrice      Money           `json:"totalPrice" bson:"totalPrice"`
	IsDelivered     bool            `json:"isDelivered" bson:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
}

// OwnedBy reports whether userID placed the order.
func (o Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// Clone returns a deep copy so callers cannot reach into stored state.
func (o Order) Clone() Order {
	c := o
	c.OrderItems = append([]OrderItem(nil), o.OrderItems...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return c
}
