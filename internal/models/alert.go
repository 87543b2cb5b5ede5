package models

import (
	"fmt"
	"time"
)

type AlertEvent struct {
	ID          string    `json:"id"`
	Location    string    `json:"location"`
	Owner       string    `json:"owner"`
	ItemKey     string    `json:"itemName"`
	Quantity    int       `json:"quantity"`
	Threshold   int       `json:"threshold"`
	Destination string    `json:"destination"`
	RaisedAt    time.Time `json:"raised_at"`
}

// Message is the text delivered to the alert destination.
func (e AlertEvent) Message() string {
	return fmt.Sprintf("Low inventory alert: '%s' is now at %d units.", e.ItemKey, e.Quantity)
}

const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliveryDropped = "dropped"
)

// AlertDelivery is the outcome of one delivery attempt, kept in the alert
// history.
type AlertDelivery struct {
	Event       AlertEvent `json:"event"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	DeliveredAt time.Time  `json:"delivered_at"`
}
