package membership

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

func newController(fake *fleettest.Fake) *Controller {
	return NewController(fake, poll.Config{Interval: time.Millisecond, MaxRetries: 3})
}

func TestPause_ConvergesToPaused(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})

	c := newController(fake)
	require.NoError(t, c.Pause(context.Background(), "mbx-01"))

	m, err := fake.GetMembership(context.Background(), "mbx-01")
	require.NoError(t, err)
	assert.Equal(t, types.MembershipPaused, m.State)
	assert.Equal(t, 1, fake.PauseCalls)
}

func TestPause_AlreadyPausedIsNoOp(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.SetMembership("mbx-01", types.Membership{State: types.MembershipPaused})

	c := newController(fake)
	require.NoError(t, c.Pause(context.Background(), "mbx-01"))
	assert.Equal(t, 0, fake.PauseCalls, "no redundant pause against an already-paused node")
}

func TestPause_StuckUpTimesOut(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.PauseStalls = true

	c := newController(fake)
	err := c.Pause(context.Background(), "mbx-01")

	var timeout *poll.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Contains(t, timeout.LastObserved, "draining=true")
}

func TestResume_ConvergesToUp(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.SetMembership("mbx-01", types.Membership{State: types.MembershipPaused})

	c := newController(fake)
	require.NoError(t, c.Resume(context.Background(), "mbx-01"))

	m, err := fake.GetMembership(context.Background(), "mbx-01")
	require.NoError(t, err)
	assert.Equal(t, types.MembershipUp, m.State)
}

func TestResume_AlreadyUpIsNoOp(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})

	c := newController(fake)
	require.NoError(t, c.Resume(context.Background(), "mbx-01"))
	assert.Equal(t, 0, fake.ResumeCalls)
}
