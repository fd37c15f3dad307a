package assign_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/pool"
	"github.com/kilianp07/darkstore/core/store"
	"github.com/kilianp07/darkstore/infra/logger"
)

var (
	depot = geo.Point{Lat: 18.5286, Lng: 73.8748}
	epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx      context.Context
	repo     *pool.Repository
	picking  *assign.Queue
	delivery *assign.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := pool.NewRepository(store.NewMemory(), time.Second, logger.NopLogger{})
	clock := func() time.Time { return epoch }
	return &fixture{
		ctx:  context.Background(),
		repo: repo,
		picking: assign.NewQueue(assign.Picking, pool.NewPickerRoster(repo), repo, logger.NopLogger{},
			assign.WithClock(clock)),
		delivery: assign.NewQueue(assign.Delivery, pool.NewAgentRoster(repo, depot), repo, logger.NopLogger{},
			assign.WithClock(clock)),
	}
}

func (f *fixture) addOrders(t *testing.T, st model.Status, n int, prefix string) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range n {
		id := fmt.Sprintf("%s%d", prefix, i+1)
		ids[i] = id
		require.NoError(t, f.repo.SaveOrder(f.ctx, model.Order{
			ID:        id,
			Status:    st,
			DropOff:   &geo.Point{Lat: 18.53 + float64(i)*0.001, Lng: 73.87},
			CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
		}))
	}
	return ids
}

func (f *fixture) addPickers(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		id := fmt.Sprintf("p%d", i+1)
		require.NoError(t, f.repo.SavePicker(f.ctx, model.Picker{ID: id, Name: "Picker " + id}))
	}
}

func (f *fixture) addAgents(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		id := fmt.Sprintf("a%d", i+1)
		loc := depot
		require.NoError(t, f.repo.SaveAgent(f.ctx, model.Agent{ID: id, Name: "Agent " + id, Location: &loc}))
	}
}

func (f *fixture) order(t *testing.T, id string) model.Order {
	t.Helper()
	o, err := f.repo.Order(f.ctx, id)
	require.NoError(t, err)
	return o
}

func (f *fixture) picker(t *testing.T, id string) model.Picker {
	t.Helper()
	p, err := f.repo.Picker(f.ctx, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) agent(t *testing.T, id string) model.Agent {
	t.Helper()
	a, err := f.repo.Agent(f.ctx, id)
	require.NoError(t, err)
	return a
}

// checkInvariants asserts the one-to-one rules over the whole store.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	holder := map[string]string{}
	pickers, err := f.repo.Pickers(f.ctx)
	require.NoError(t, err)
	for _, p := range pickers {
		require.Equal(t, p.Active, p.OrderID != "", "picker %s active flag out of sync", p.ID)
		if p.OrderID != "" {
			prev, dup := holder[p.OrderID]
			require.False(t, dup, "order %s held by %s and %s", p.OrderID, prev, p.ID)
			holder[p.OrderID] = p.ID
		}
	}
	agents, err := f.repo.Agents(f.ctx)
	require.NoError(t, err)
	for _, a := range agents {
		require.Equal(t, a.Status == model.AgentBusy, len(a.AssignedOrders) > 0, "agent %s status out of sync", a.ID)
		for _, id := range a.AssignedOrders {
			prev, dup := holder[id]
			require.False(t, dup, "order %s held by %s and %s", id, prev, a.ID)
			holder[id] = a.ID
		}
	}
}

// failingBook fails MergeOrder for one order id.
type failingBook struct {
	*pool.Repository
	failID string
}

var errWrite = errors.New("write rejected")

func (b failingBook) MergeOrder(ctx context.Context, id string, fields store.Record) error {
	if id == b.failID {
		return errWrite
	}
	return b.Repository.MergeOrder(ctx, id, fields)
}
