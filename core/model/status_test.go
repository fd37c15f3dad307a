package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusAliases(t *testing.T) {
	cases := map[string]Status{
		"Unpicked":              StatusUnpicked,
		"pending":               StatusUnpicked,
		"PICKING":               StatusPicking,
		"picked":                StatusPicked,
		"out for delivery":      StatusOutForDelivery,
		"out_for_delivery":      StatusOutForDelivery,
		"OutForDelivery":        StatusOutForDelivery,
		"delivery_boy_assigned": StatusOutForDelivery,
		"Delivered":             StatusDelivered,
		"failed":                StatusFailed,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStatus("lost")
	assert.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"order_id":"o1","current_status":"out for delivery"}`), &o))
	assert.Equal(t, StatusOutForDelivery, o.Status)

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"current_status":"OutForDelivery"`)

	assert.Error(t, json.Unmarshal([]byte(`{"current_status":"teleported"}`), &o))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, StatusUnpicked.CanTransition(StatusPicking))
	assert.True(t, StatusPicking.CanTransition(StatusPicked))
	assert.True(t, StatusPicked.CanTransition(StatusOutForDelivery))
	assert.True(t, StatusOutForDelivery.CanTransition(StatusDelivered))
	assert.True(t, StatusPicking.CanTransition(StatusUnpicked))
	assert.True(t, StatusOutForDelivery.CanTransition(StatusPicked))
	assert.True(t, StatusPicked.CanTransition(StatusFailed))

	assert.False(t, StatusUnpicked.CanTransition(StatusPicked))
	assert.False(t, StatusDelivered.CanTransition(StatusFailed))
	assert.False(t, StatusFailed.CanTransition(StatusUnpicked))
	assert.False(t, StatusPicked.CanTransition(StatusUnpicked))
}

func TestOrderTransition(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	o := Order{ID: "o1", Status: StatusUnpicked}

	fields, err := o.Transition(StatusPicking, now)
	require.NoError(t, err)
	assert.Equal(t, "Picking", fields[FieldStatus])
	assert.Equal(t, now.Format(time.RFC3339Nano), fields[FieldPickingStartedAt])

	_, err = o.Transition(StatusDelivered, now)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestAgentStatusIngestion(t *testing.T) {
	var a Agent
	require.NoError(t, json.Unmarshal([]byte(`{"delivery_agent_id":"a1","status":"Busy","order_assigned":["o1"]}`), &a))
	assert.Equal(t, AgentBusy, a.Status)
	assert.True(t, a.Busy())
	assert.True(t, a.Holds("o1"))
	assert.False(t, a.Holds("o2"))
}
