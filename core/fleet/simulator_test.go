package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/events"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/pool"
	"github.com/kilianp07/darkstore/core/store"
	"github.com/kilianp07/darkstore/infra/logger"
)

var depot = geo.Point{Lat: 0, Lng: 0}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.evs = append(r.evs, e)
	r.mu.Unlock()
}

func (r *recorder) deliveries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, e := range r.evs {
		if d, ok := e.(events.DeliveryEvent); ok {
			ids = append(ids, d.OrderID)
		}
	}
	return ids
}

func setup(t *testing.T, orders ...model.Order) (*pool.Repository, *Simulator, *recorder) {
	t.Helper()
	ctx := context.Background()
	repo := pool.NewRepository(store.NewMemory(), time.Second, logger.NopLogger{})
	ids := make([]string, len(orders))
	for i, o := range orders {
		o.Status = model.StatusOutForDelivery
		o.AgentID = "a1"
		require.NoError(t, repo.SaveOrder(ctx, o))
		ids[i] = o.ID
	}
	loc := depot
	require.NoError(t, repo.SaveAgent(ctx, model.Agent{ID: "a1", Status: model.AgentBusy, Location: &loc, AssignedOrders: ids}))
	q := assign.NewQueue(assign.Delivery, pool.NewAgentRoster(repo, depot), repo, logger.NopLogger{})
	rec := &recorder{}
	sim := New(Config{Tick: 2 * time.Millisecond}, repo, q, rec, logger.NopLogger{})
	return repo, sim, rec
}

func TestProximityDeliveryReturnsAgentToIdle(t *testing.T) {
	ctx := context.Background()
	o1 := geo.Point{Lat: 0, Lng: 0.001}
	o2 := geo.Point{Lat: 0, Lng: 0.002}
	repo, sim, rec := setup(t,
		model.Order{ID: "o1", DropOff: &o1},
		model.Order{ID: "o2", DropOff: &o2},
	)
	path := []geo.Point{depot, o1, o2, {Lat: 0, Lng: 0.003}}
	require.NoError(t, repo.SaveRoute(ctx, model.Route{AgentID: "a1", Points: path}))

	require.False(t, sim.Launch(ctx, "a1", path), "inactive simulator must refuse")
	require.True(t, sim.Start())
	require.True(t, sim.Launch(ctx, "a1", path))
	assert.False(t, sim.Launch(ctx, "a1", path), "duplicate task")
	sim.Wait()
	assert.False(t, sim.Running("a1"))

	for _, id := range []string{"o1", "o2"} {
		o, err := repo.Order(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDelivered, o.Status, id)
		assert.NotNil(t, o.DeliveredAt, id)
	}
	a, err := repo.Agent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AgentAvailable, a.Status)
	assert.Empty(t, a.AssignedOrders)
	assert.Equal(t, 2, a.CompletedOrders)
	assert.Equal(t, depot, *a.Location)
	_, err = repo.Route(ctx, "a1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"o1", "o2"}, rec.deliveries())
}

func TestRouteExhaustedKeepsAgentBusy(t *testing.T) {
	ctx := context.Background()
	far := geo.Point{Lat: 0, Lng: 0.5}
	repo, sim, _ := setup(t, model.Order{ID: "o1", DropOff: &far})
	sim.Start()
	last := geo.Point{Lat: 0, Lng: 0.01}
	require.True(t, sim.Launch(ctx, "a1", []geo.Point{depot, last}))
	sim.Wait()

	a, err := repo.Agent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AgentBusy, a.Status)
	assert.Equal(t, last, *a.Location)
	o, err := repo.Order(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOutForDelivery, o.Status)
}

func TestStopEndsTasks(t *testing.T) {
	ctx := context.Background()
	far := geo.Point{Lat: 0, Lng: 0.5}
	repo, sim, _ := setup(t, model.Order{ID: "o1", DropOff: &far})
	path := geo.Interpolate(depot, far, 0.001)
	sim.Start()
	require.True(t, sim.Launch(ctx, "a1", path))
	assert.Equal(t, []string{"a1"}, sim.Agents())
	time.Sleep(10 * time.Millisecond)
	assert.True(t, sim.Stop())
	assert.False(t, sim.Active())
	sim.Wait()

	a, err := repo.Agent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AgentBusy, a.Status)
	assert.NotEqual(t, depot, *a.Location)
}

func TestReplaceRestartsFromNewRoute(t *testing.T) {
	ctx := context.Background()
	target := geo.Point{Lat: 0.01, Lng: 0}
	repo, sim, _ := setup(t, model.Order{ID: "o1", DropOff: &target})
	sim.cfg.Tick = 20 * time.Millisecond
	sim.Start()
	wrong := geo.Interpolate(depot, geo.Point{Lat: 0, Lng: 0.5}, 0.001)
	require.True(t, sim.Launch(ctx, "a1", wrong))
	require.True(t, sim.Replace("a1", []geo.Point{target}))
	sim.Wait()

	o, err := repo.Order(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, o.Status)
	assert.False(t, sim.Replace("a1", []geo.Point{target}))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	far := geo.Point{Lat: 0, Lng: 0.5}
	_, sim, _ := setup(t, model.Order{ID: "o1", DropOff: &far})
	sim.Start()
	require.True(t, sim.Launch(ctx, "a1", geo.Interpolate(depot, far, 0.001)))
	assert.True(t, sim.Cancel("a1"))
	sim.Wait()
	assert.False(t, sim.Running("a1"))
	assert.False(t, sim.Cancel("a1"))
	assert.True(t, sim.Active())
}
