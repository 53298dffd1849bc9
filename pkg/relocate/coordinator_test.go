package relocate

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmail/fleetmaint/pkg/fleet/fleettest"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/poll"
	"github.com/oakmail/fleetmaint/pkg/types"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard, JSONOutput: true})
}

func fastPoll() poll.Config {
	return poll.Config{Interval: time.Millisecond, MaxRetries: 3}
}

func TestRelocateAway_MovesReplicatedCopies(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1", DAG: "dag-a"})
	for _, db := range []string{"db1", "db2", "db3"} {
		fake.AddCopy(&types.DatabaseCopy{
			Database:    db,
			Node:        "mbx-01",
			Status:      types.CopyMounted,
			Replication: types.ReplicationReplicated,
			Policy:      types.ActivationUnrestricted,
		})
	}

	c := NewCoordinator(fake, fastPoll())
	require.NoError(t, c.RelocateAway(context.Background(), "mbx-01"))

	assert.Equal(t, 0, fake.MountedCount("mbx-01"))
	assert.Equal(t, 1, fake.MoveCalls)
	assert.Equal(t, []types.ActivationPolicy{types.ActivationBlocked}, fake.PolicyCalls)
	assert.Equal(t, []bool{true}, fake.MoveNowCalls)
}

func TestRelocateAway_DismountsUnreplicated(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.AddCopy(&types.DatabaseCopy{
		Database:       "standalone",
		Node:           "mbx-01",
		Status:         types.CopyMounted,
		Replication:    types.ReplicationNone,
		MountAtStartup: true,
	})

	c := NewCoordinator(fake, fastPoll())
	require.NoError(t, c.RelocateAway(context.Background(), "mbx-01"))

	assert.Equal(t, []string{"standalone"}, fake.DismountCalls)
	assert.Equal(t, 0, fake.MoveCalls, "nothing replicated to move")
}

// TestRelocateAway_ZeroMountedSkipsWait is the divide-by-zero guard: with
// no mounted copies the coordinator must complete without triggering a
// move or entering the convergence loop.
func TestRelocateAway_ZeroMountedSkipsWait(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.AddCopy(&types.DatabaseCopy{
		Database:    "db1",
		Node:        "mbx-01",
		Status:      types.CopyDismounted,
		Replication: types.ReplicationReplicated,
	})

	// A poll budget of zero retries would fail instantly if the wait ran.
	c := NewCoordinator(fake, poll.Config{Interval: time.Hour, MaxRetries: 0})
	require.NoError(t, c.RelocateAway(context.Background(), "mbx-01"))
	assert.Equal(t, 0, fake.MoveCalls)
}

func TestRelocateAway_StuckCopyTimesOut(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.AddCopy(&types.DatabaseCopy{
		Database:    "db1",
		Node:        "mbx-01",
		Status:      types.CopyMounted,
		Replication: types.ReplicationReplicated,
	})
	fake.MoveStalls = true

	c := NewCoordinator(fake, fastPoll())
	err := c.RelocateAway(context.Background(), "mbx-01")

	var timeout *poll.TimeoutError
	require.ErrorAs(t, err, &timeout, "stuck copies surface as a classifiable timeout")
	assert.Contains(t, timeout.LastObserved, "1 of 1 copies still mounted")
}

func TestRelocateBack_RestoresPlacement(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1", DAG: "dag-a"})
	standalone := &types.DatabaseCopy{
		Database:    "standalone",
		Node:        "mbx-01",
		Status:      types.CopyDismounted,
		Replication: types.ReplicationNone,
	}
	fake.AddCopy(standalone)
	fake.AddCopy(&types.DatabaseCopy{
		Database:        "db1",
		Node:            "mbx-01",
		Status:          types.CopyHealthy,
		Replication:     types.ReplicationReplicated,
		PreferredHolder: "mbx-01",
	})

	c := NewCoordinator(fake, fastPoll())
	require.NoError(t, c.RelocateBack(context.Background(), "mbx-01"))

	assert.Equal(t, []types.ActivationPolicy{types.ActivationUnrestricted}, fake.PolicyCalls)
	assert.Equal(t, []bool{false}, fake.MoveNowCalls)
	assert.Equal(t, 1, fake.MoveCalls)
	assert.Equal(t, []string{"standalone"}, fake.MountCalls)
	assert.True(t, standalone.MountAtStartup, "mount-at-startup restored on the way back")
}
