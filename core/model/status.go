package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an order.
type Status int

const (
	StatusUnknown Status = iota
	StatusUnpicked
	StatusPicking
	StatusPicked
	StatusOutForDelivery
	StatusDelivered
	StatusFailed
)

// statusAliases maps every spelling seen in stored records to the canonical
// status. Keys are lower case with separators removed.
var statusAliases = map[string]Status{
	"unpicked":            StatusUnpicked,
	"pending":             StatusUnpicked,
	"picking":             StatusPicking,
	"picked":              StatusPicked,
	"outfordelivery":      StatusOutForDelivery,
	"deliveryboyassigned": StatusOutForDelivery,
	"delivered":           StatusDelivered,
	"failed":              StatusFailed,
}

// ParseStatus converts a stored status string into a Status. Matching is case
// insensitive and ignores spaces, dashes and underscores.
func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(s)
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return StatusUnknown, fmt.Errorf("unknown order status %q", s)
}

// String returns the canonical spelling written back to the store.
func (s Status) String() string {
	switch s {
	case StatusUnpicked:
		return "Unpicked"
	case StatusPicking:
		return "Picking"
	case StatusPicked:
		return "Picked"
	case StatusOutForDelivery:
		return "OutForDelivery"
	case StatusDelivered:
		return "Delivered"
	case StatusFailed:
		return "Failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusFailed }

// CanTransition reports whether moving from s to to is a legal lifecycle
// step. Reverts (Picking to Unpicked, OutForDelivery to Picked) are accepted
// because queue resets rely on them.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() || to == StatusUnknown {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch s {
	case StatusUnpicked:
		return to == StatusPicking
	case StatusPicking:
		return to == StatusPicked || to == StatusUnpicked
	case StatusPicked:
		return to == StatusOutForDelivery
	case StatusOutForDelivery:
		return to == StatusDelivered || to == StatusPicked
	}
	return false
}

// Reverts reports whether moving from s to to undoes a stage. Only queue
// resets may do that.
func (s Status) Reverts(to Status) bool {
	return (s == StatusPicking && to == StatusUnpicked) || (s == StatusOutForDelivery && to == StatusPicked)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s == StatusUnknown {
		return nil, fmt.Errorf("cannot encode unknown status")
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// AgentStatus is the availability of a delivery agent.
type AgentStatus int

const (
	AgentAvailable AgentStatus = iota
	AgentBusy
	AgentOffline
)

func (s AgentStatus) String() string {
	switch s {
	case AgentBusy:
		return "busy"
	case AgentOffline:
		return "offline"
	default:
		return "available"
	}
}

// ParseAgentStatus accepts any casing of available, busy or offline.
func ParseAgentStatus(s string) (AgentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "idle", "":
		return AgentAvailable, nil
	case "busy":
		return AgentBusy, nil
	case "offline":
		return AgentOffline, nil
	}
	return AgentAvailable, fmt.Errorf("unknown agent status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s AgentStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AgentStatus) UnmarshalText(b []byte) error {
	st, err := ParseAgentStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
