package assign_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/model"
)

// failOutside marks an order Failed without going through a queue.
func (f *fixture) failOutside(t *testing.T, id string) {
	t.Helper()
	fields, err := f.order(t, id).Transition(model.StatusFailed, epoch)
	require.NoError(t, err)
	require.NoError(t, f.repo.MergeOrder(f.ctx, id, fields))
}

func TestFailOrderReleasesAgent(t *testing.T) {
	f := newFixture(t)
	f.addAgents(t, 1)
	f.addOrders(t, model.StatusPicked, 2, "d")
	_, err := f.delivery.ClaimBatch(f.ctx, "a1", []string{"d1", "d2"}, "")
	require.NoError(t, err)

	c, err := f.delivery.FailOrder(f.ctx, "a1", "d1")
	require.NoError(t, err)
	assert.False(t, c.Freed)
	assert.Empty(t, c.OrderIDs)
	ag := f.agent(t, "a1")
	assert.Equal(t, model.AgentBusy, ag.Status)
	assert.Equal(t, []string{"d2"}, ag.AssignedOrders)
	assert.Zero(t, ag.CompletedOrders)
	o := f.order(t, "d1")
	assert.Equal(t, model.StatusFailed, o.Status)
	assert.NotNil(t, o.FailedAt)

	c, err = f.delivery.FailOrder(f.ctx, "a1", "d2")
	require.NoError(t, err)
	assert.True(t, c.Freed)
	ag = f.agent(t, "a1")
	assert.Equal(t, model.AgentAvailable, ag.Status)
	assert.Empty(t, ag.AssignedOrders)
	assert.Zero(t, ag.CompletedOrders)
	f.checkInvariants(t)

	_, err = f.delivery.FailOrder(f.ctx, "a1", "d2")
	assert.ErrorIs(t, err, model.ErrWorkerNotActive)
}

func TestFailOrderChainsPicker(t *testing.T) {
	f := newFixture(t)
	f.addPickers(t, 1)
	f.addOrders(t, model.StatusUnpicked, 2, "o")
	a, err := f.picking.Assign(f.ctx, assign.Request{})
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, a.OrderIDs)

	_, err = f.picking.FailOrder(f.ctx, "p1", "o2")
	assert.ErrorIs(t, err, model.ErrOrderUnavailable)

	c, err := f.picking.FailOrder(f.ctx, "p1", "o1")
	require.NoError(t, err)
	assert.True(t, c.Freed)
	require.NotNil(t, c.Next)
	assert.Equal(t, []string{"o2"}, c.Next.OrderIDs)
	o := f.order(t, "o1")
	assert.Equal(t, model.StatusFailed, o.Status)
	assert.Empty(t, o.PickerID)
	assert.Equal(t, "o2", f.picker(t, "p1").OrderID)
	f.checkInvariants(t)
}

func TestCompleteSkipsOrderFailedOutsideQueue(t *testing.T) {
	f := newFixture(t)
	f.addAgents(t, 1)
	f.addOrders(t, model.StatusPicked, 2, "d")
	_, err := f.delivery.ClaimBatch(f.ctx, "a1", []string{"d1", "d2"}, "")
	require.NoError(t, err)
	f.failOutside(t, "d1")

	c, err := f.delivery.Complete(f.ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, c.OrderIDs)
	assert.True(t, c.Freed)
	assert.Equal(t, model.StatusFailed, f.order(t, "d1").Status)
	ag := f.agent(t, "a1")
	assert.Equal(t, model.AgentAvailable, ag.Status)
	assert.Equal(t, 1, ag.CompletedOrders)
	f.checkInvariants(t)
}

func TestCompleteOrderRejectsFailedOrder(t *testing.T) {
	f := newFixture(t)
	f.addAgents(t, 1)
	f.addOrders(t, model.StatusPicked, 2, "d")
	_, err := f.delivery.ClaimBatch(f.ctx, "a1", []string{"d1", "d2"}, "")
	require.NoError(t, err)
	f.failOutside(t, "d1")

	c, err := f.delivery.CompleteOrder(f.ctx, "a1", "d1")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Empty(t, c.OrderIDs)
	assert.False(t, c.Freed)
	ag := f.agent(t, "a1")
	assert.Equal(t, []string{"d2"}, ag.AssignedOrders)
	assert.Zero(t, ag.CompletedOrders)

	// The last failed order leaves the agent with nothing to deliver.
	f.failOutside(t, "d2")
	_, err = f.delivery.CompleteOrder(f.ctx, "a1", "d2")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	ag = f.agent(t, "a1")
	assert.Equal(t, model.AgentAvailable, ag.Status)
	assert.Zero(t, ag.CompletedOrders)
	f.checkInvariants(t)
}

func TestStaleAssigneeOfOtherStageDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.addPickers(t, 1)
	f.addAgents(t, 1)
	f.addOrders(t, model.StatusPicked, 1, "d")
	f.addOrders(t, model.StatusUnpicked, 1, "u")
	require.NoError(t, f.repo.MergeOrder(f.ctx, "d1", map[string]any{model.FieldPickerID: "p9"}))
	require.NoError(t, f.repo.MergeOrder(f.ctx, "u1", map[string]any{model.FieldPickerID: "p9"}))

	a, err := f.delivery.Assign(f.ctx, assign.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, a.OrderIDs)

	_, err = f.picking.Assign(f.ctx, assign.Request{})
	assert.ErrorIs(t, err, model.ErrOrderUnavailable, "a picker id still marks the order as taken for picking")
}
