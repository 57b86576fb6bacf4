package models

import "time"

const (
	EventOrderPlaced    = "order.placed"
	EventOrderDelivered = "order.delivered"
)

// OrderEvent is published once per real state change of an order.
type OrderEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	TotalPrice Money     `json:"totalPrice"`
	At         time.Time `json:"at"`
}
