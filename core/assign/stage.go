// Package assign matches pending orders to idle workers while keeping every
// order held by at most one worker.
package assign

import "github.com/kilianp07/darkstore/core/model"

// Stage describes one assignment pipeline.
type Stage struct {
	Name string
	// Source is the status of orders waiting for a worker.
	Source model.Status
	// Active is the status while a worker holds the order.
	Active model.Status
	// Done is the status written on completion.
	Done model.Status
	// Revert is the status restored by Reset.
	Revert model.Status
	// AssigneeField is the order field stamped with the worker id.
	AssigneeField string
	// KeepAssignee leaves the worker stamp on completed orders.
	KeepAssignee bool
}

var (
	// Picking moves orders from Unpicked to Picked through a picker.
	Picking = Stage{
		Name:          "picking",
		Source:        model.StatusUnpicked,
		Active:        model.StatusPicking,
		Done:          model.StatusPicked,
		Revert:        model.StatusUnpicked,
		AssigneeField: model.FieldPickerID,
	}
	// Delivery moves orders from Picked to Delivered through an agent.
	Delivery = Stage{
		Name:          "delivery",
		Source:        model.StatusPicked,
		Active:        model.StatusOutForDelivery,
		Done:          model.StatusDelivered,
		Revert:        model.StatusPicked,
		AssigneeField: model.FieldAgentID,
		KeepAssignee:  true,
	}
)

func (s Stage) assignee(o model.Order) string {
	if s.AssigneeField == model.FieldPickerID {
		return o.PickerID
	}
	return o.AgentID
}
