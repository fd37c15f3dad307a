package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/batch"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/pool"
	"github.com/kilianp07/darkstore/core/store"
	"github.com/kilianp07/darkstore/infra/logger"
)

func TestBatcherRunCommitsBatches(t *testing.T) {
	ctx := context.Background()
	repo := pool.NewRepository(store.NewMemory(), time.Second, logger.NopLogger{})
	depot := geo.Point{Lat: 0, Lng: 0}
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, repo.SaveAgent(ctx, model.Agent{ID: id, Location: &depot}))
	}
	orders := []model.Order{
		{ID: "o1", Status: model.StatusPicked, DropOff: &geo.Point{Lat: 0, Lng: 0}},
		{ID: "o2", Status: model.StatusPicked, DropOff: &geo.Point{Lat: 0, Lng: 0.001}},
		{ID: "o3", Status: model.StatusPicked},
		{ID: "o4", Status: model.StatusUnpicked, DropOff: &geo.Point{Lat: 0, Lng: 0}},
	}
	for _, o := range orders {
		require.NoError(t, repo.SaveOrder(ctx, o))
	}
	q := assign.NewQueue(assign.Delivery, pool.NewAgentRoster(repo, depot), repo, logger.NopLogger{})
	b := batch.NewBatcher(repo, q, logger.NopLogger{})

	res, err := b.Run(ctx, batch.ModeGreedy, batch.Params{MaxDistanceKm: 1})
	require.NoError(t, err)
	require.Len(t, res.Committed, 1)
	assert.Equal(t, "a1", res.Committed[0].WorkerID)
	assert.Equal(t, []string{"o1", "o2"}, res.Committed[0].OrderIDs)
	assert.NotEmpty(t, res.Committed[0].BatchID)
	assert.Equal(t, []string{"o3"}, res.Skipped)

	a1, err := repo.Agent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AgentBusy, a1.Status)
	o2, err := repo.Order(ctx, "o2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOutForDelivery, o2.Status)
	assert.Equal(t, "a1", o2.AgentID)
	assert.Equal(t, res.Committed[0].BatchID, o2.BatchID)

	o3, err := repo.Order(ctx, "o3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPicked, o3.Status)

	// A second pass finds nothing new to batch.
	res, err = b.Run(ctx, batch.ModePartition, batch.Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Committed)
}

type unreachable struct{ *pool.Repository }

func (unreachable) ClaimBatch(context.Context, string, []string, string) (assign.Assignment, error) {
	return assign.Assignment{}, model.ErrStoreUnreachable
}

func TestBatcherAbortsWhenStoreUnreachable(t *testing.T) {
	ctx := context.Background()
	repo := pool.NewRepository(store.NewMemory(), time.Second, logger.NopLogger{})
	loc := geo.Point{}
	require.NoError(t, repo.SaveAgent(ctx, model.Agent{ID: "a1", Location: &loc}))
	require.NoError(t, repo.SaveOrder(ctx, model.Order{ID: "o1", Status: model.StatusPicked, DropOff: &loc}))

	b := batch.NewBatcher(repo, unreachable{repo}, logger.NopLogger{})
	_, err := b.Run(ctx, batch.ModeGreedy, batch.Params{MaxDistanceKm: 1})
	assert.ErrorIs(t, err, model.ErrStoreUnreachable)
}
