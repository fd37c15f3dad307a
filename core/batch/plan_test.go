package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
)

func order(id string, lat, lng float64) model.Order {
	return model.Order{ID: id, Status: model.StatusPicked, DropOff: &geo.Point{Lat: lat, Lng: lng}}
}

func agent(id string) model.Agent {
	return model.Agent{ID: id, Location: &geo.Point{}}
}

func TestGreedyAttachesWithinRadius(t *testing.T) {
	orders := []model.Order{order("o1", 0, 0), order("o2", 0, 0.001)}

	got := Plan(orders, []model.Agent{agent("a1"), agent("a2")}, ModeGreedy, Params{MaxDistanceKm: 1.0})
	require.Len(t, got, 1)
	assert.Equal(t, Batch{AgentID: "a1", AnchorID: "o1", OrderIDs: []string{"o1", "o2"}}, got[0])
}

func TestGreedySplitsBeyondRadius(t *testing.T) {
	orders := []model.Order{order("o1", 0, 0), order("o2", 0, 0.001)}

	got := Plan(orders, []model.Agent{agent("a1"), agent("a2")}, ModeGreedy, Params{MaxDistanceKm: 0.05})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"o1"}, got[0].OrderIDs)
	assert.Equal(t, "a2", got[1].AgentID)
	assert.Equal(t, []string{"o2"}, got[1].OrderIDs)

	// With a single agent the second order stays unbatched.
	got = Plan(orders, []model.Agent{agent("a1")}, ModeGreedy, Params{MaxDistanceKm: 0.05})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"o1"}, got[0].OrderIDs)
}

func TestGreedyMaxOrders(t *testing.T) {
	orders := []model.Order{order("o1", 0, 0), order("o2", 0, 0.0001), order("o3", 0, 0.0002)}
	got := Plan(orders, []model.Agent{agent("a1"), agent("a2")}, ModeGreedy, Params{MaxDistanceKm: 1, MaxOrders: 2})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"o1", "o2"}, got[0].OrderIDs)
	assert.Equal(t, []string{"o3"}, got[1].OrderIDs)
}

func TestPartitionSeparatesClusters(t *testing.T) {
	orders := []model.Order{
		order("n1", 18.60, 73.80),
		order("s1", 18.40, 73.90),
		order("n2", 18.61, 73.81),
		order("s2", 18.41, 73.91),
		order("n3", 18.59, 73.79),
	}
	agents := []model.Agent{agent("a1"), agent("a2")}

	got := Plan(orders, agents, ModePartition, Params{})
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].AgentID)
	assert.ElementsMatch(t, []string{"n1", "n2", "n3"}, got[0].OrderIDs)
	assert.ElementsMatch(t, []string{"s1", "s2"}, got[1].OrderIDs)

	// Deterministic for identical input.
	assert.Equal(t, got, Plan(orders, agents, ModePartition, Params{}))
}

func TestPartitionSingleCluster(t *testing.T) {
	orders := []model.Order{order("o1", 1, 1), order("o2", 5, 5), order("o3", 9, 9)}
	got := Plan(orders, []model.Agent{agent("a1")}, ModePartition, Params{})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"o1", "o2", "o3"}, got[0].OrderIDs)
}

func TestPartitionCapsClustersAtOrderCount(t *testing.T) {
	orders := []model.Order{order("o1", 1, 1), order("o2", 5, 5)}
	agents := []model.Agent{agent("a1"), agent("a2"), agent("a3")}
	got := Plan(orders, agents, ModePartition, Params{})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"o1"}, got[0].OrderIDs)
	assert.Equal(t, []string{"o2"}, got[1].OrderIDs)
}

func TestPlanSkipsInvalidCoordinates(t *testing.T) {
	orders := []model.Order{{ID: "nil"}, order("bad", 120, 0), order("ok", 0, 0)}
	agents := []model.Agent{{ID: "lost"}, agent("a1")}

	prop := Propose(orders, agents, ModeGreedy, Params{MaxDistanceKm: 1})
	assert.Equal(t, []string{"nil", "bad"}, prop.SkippedOrders)
	assert.Equal(t, []string{"lost"}, prop.SkippedAgents)
	require.Len(t, prop.Batches, 1)
	assert.Equal(t, "a1", prop.Batches[0].AgentID)
}

func TestPlanEmptyInputs(t *testing.T) {
	assert.Empty(t, Plan(nil, []model.Agent{agent("a1")}, ModeGreedy, Params{}))
	assert.Empty(t, Plan([]model.Order{order("o1", 0, 0)}, nil, ModePartition, Params{}))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Partition")
	require.NoError(t, err)
	assert.Equal(t, ModePartition, m)
	m, err = ParseMode("GREEDY")
	require.NoError(t, err)
	assert.Equal(t, ModeGreedy, m)
	_, err = ParseMode("random")
	assert.Error(t, err)
}
