package model

import (
	"slices"

	"github.com/kilianp07/darkstore/core/geo"
)

// Picker and agent record field names.
const (
	FieldActive          = "active"
	FieldOrderID         = "order_id"
	FieldProgress        = "progress"
	FieldAgentStatus     = "status"
	FieldLocation        = "current_location"
	FieldAssignedOrders  = "order_assigned"
	FieldCompletedOrders = "completed_orders"
)

// Picker collects the items of one order at a time inside the store.
type Picker struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	OrderID  string `json:"order_id,omitempty"`
	Progress int    `json:"progress"`
}

// Agent transports a batch of picked orders to customers.
type Agent struct {
	ID              string      `json:"delivery_agent_id"`
	Name            string      `json:"delivery_agent_name"`
	Status          AgentStatus `json:"status"`
	Location        *geo.Point  `json:"current_location,omitempty"`
	Vehicle         string      `json:"vehicle_type,omitempty"`
	Zone            string      `json:"zone,omitempty"`
	AssignedOrders  []string    `json:"order_assigned"`
	Rating          float64     `json:"rating,omitempty"`
	CompletedOrders int         `json:"completed_orders"`
}

// Busy reports whether the agent holds at least one order.
func (a Agent) Busy() bool { return len(a.AssignedOrders) > 0 }

// Holds reports whether orderID is in the agent's batch.
func (a Agent) Holds(orderID string) bool { return slices.Contains(a.AssignedOrders, orderID) }
