// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - AssignmentEvent: orders claimed by a picker or agent
//   - CompletionEvent: a worker finished its orders for a stage
//   - DeliveryEvent: an order reached its customer
//   - PositionEvent: a simulated agent moved
//   - RouteEvent: an agent received a new or rerouted path
package events
