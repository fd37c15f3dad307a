package model

import "errors"

var (
	// ErrWorkerUnavailable is returned when no idle worker matches the request.
	ErrWorkerUnavailable = errors.New("worker unavailable")
	// ErrOrderUnavailable is returned when the order is not pending for the stage.
	ErrOrderUnavailable = errors.New("order unavailable")
	// ErrAlreadyAssigned is returned when a fresh read shows the order claimed.
	ErrAlreadyAssigned = errors.New("order already assigned")
	// ErrWorkerNotActive is returned for progress or completion on an idle worker.
	ErrWorkerNotActive = errors.New("worker not active")
	// ErrStoreUnreachable wraps connectivity failures of the external store.
	ErrStoreUnreachable = errors.New("store unreachable")
	// ErrRoutingProviderFailure wraps routing provider errors and timeouts.
	ErrRoutingProviderFailure = errors.New("routing provider failure")
	// ErrInvalidCoordinate marks a missing or out of range coordinate.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidTransition is returned for an illegal order status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)
