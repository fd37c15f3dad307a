package model

import (
	"time"

	"github.com/kilianp07/darkstore/core/geo"
)

// Collection names of the external store.
const (
	CollectionOrders  = "orders"
	CollectionPickers = "pickers"
	CollectionAgents  = "delivery_agents"
	CollectionRoutes  = "optimized_routes"
)

// Order record field names used for partial updates.
const (
	FieldStatus           = "current_status"
	FieldPickerID         = "picker_id"
	FieldAgentID          = "delivery_agent_assigned"
	FieldBatchID          = "batch_id"
	FieldUpdatedAt        = "last_updated"
	FieldPickingStartedAt = "picking_started_at"
	FieldPickedAt         = "picked_at"
	FieldOutForDeliveryAt = "out_for_delivery_at"
	FieldDeliveredAt      = "delivered_at"
	FieldFailedAt         = "failed_at"
)

// Order is a customer order moving through picking and delivery.
type Order struct {
	ID               string     `json:"order_id"`
	Items            []string   `json:"order_items,omitempty"`
	DropOff          *geo.Point `json:"delivery_location,omitempty"`
	Status           Status     `json:"current_status"`
	PickerID         string     `json:"picker_id,omitempty"`
	AgentID          string     `json:"delivery_agent_assigned,omitempty"`
	BatchID          string     `json:"batch_id,omitempty"`
	SLA              string     `json:"sla,omitempty"`
	CustomerName     string     `json:"customer_name,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"last_updated,omitempty"`
	PickingStartedAt *time.Time `json:"picking_started_at,omitempty"`
	PickedAt         *time.Time `json:"picked_at,omitempty"`
	OutForDeliveryAt *time.Time `json:"out_for_delivery_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
}

// StampField returns the timestamp field written when an order enters s.
func StampField(s Status) string {
	switch s {
	case StatusPicking:
		return FieldPickingStartedAt
	case StatusPicked:
		return FieldPickedAt
	case StatusOutForDelivery:
		return FieldOutForDeliveryAt
	case StatusDelivered:
		return FieldDeliveredAt
	case StatusFailed:
		return FieldFailedAt
	}
	return ""
}

// Transition builds the field set moving o to status to at now. It fails with
// ErrInvalidTransition when the lifecycle forbids the move.
func (o Order) Transition(to Status, now time.Time) (map[string]any, error) {
	if !o.Status.CanTransition(to) {
		return nil, &TransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	ts := now.UTC().Format(time.RFC3339Nano)
	fields := map[string]any{
		FieldStatus:    to.String(),
		FieldUpdatedAt: ts,
	}
	if f := StampField(to); f != "" {
		fields[f] = ts
	}
	return fields, nil
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	OrderID  string
	From, To Status
}

func (e *TransitionError) Error() string {
	return "order " + e.OrderID + ": cannot move from " + e.From.String() + " to " + e.To.String()
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
