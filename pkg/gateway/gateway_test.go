package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{Address: server.URL, Timeout: time.Second})
	require.NoError(t, err)
	return client, server
}

func TestNewClient_RejectsBadAddress(t *testing.T) {
	_, err := NewClient(Config{Address: "not-a-url"})
	require.Error(t, err)

	_, err = NewClient(Config{Address: "://missing"})
	require.Error(t, err)
}

func TestGetComponent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/nodes/n1/components/transport", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"state": "draining"})
	}))

	state, err := client.GetComponent(context.Background(), "n1", types.CapabilityTransport)
	require.NoError(t, err)
	assert.Equal(t, types.ComponentDraining, state)
}

func TestSetComponent_SendsRequester(t *testing.T) {
	var got componentRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.SetComponent(context.Background(), "n1", types.CapabilityWideOffline, types.ComponentInactive, "fleetmaint")
	require.NoError(t, err)
	assert.Equal(t, types.ComponentInactive, got.State)
	assert.Equal(t, "fleetmaint", got.Requester)
}

func TestGetDepth_ExcludesClasses(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nodes/n1/queues/depth", r.URL.Path)
		assert.Equal(t, []string{"shadow"}, r.URL.Query()["exclude"])
		json.NewEncoder(w).Encode(map[string]int{"depth": 42})
	}))

	depth, err := client.GetDepth(context.Background(), "n1", []types.QueueClass{types.QueueClassShadow})
	require.NoError(t, err)
	assert.Equal(t, 42, depth)
}

func TestRedirect(t *testing.T) {
	var got redirectRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nodes/n1/queues/redirect", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))

	require.NoError(t, client.Redirect(context.Background(), "n1", "n4"))
	assert.Equal(t, "n4", got.Target)
}

func TestListByHolder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nodes/n1/copies", r.URL.Path)
		json.NewEncoder(w).Encode([]copyRecord{
			{
				Database:        "db1",
				Node:            "n1",
				Status:          types.CopyMounted,
				Policy:          types.ActivationBlocked,
				MoveNow:         true,
				Replication:     types.ReplicationReplicated,
				PreferredHolder: "n1",
			},
		})
	}))

	copies, err := client.ListByHolder(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, "db1", copies[0].Database)
	assert.Equal(t, types.CopyMounted, copies[0].Status)
	assert.Equal(t, types.ActivationBlocked, copies[0].Policy)
	assert.True(t, copies[0].MoveNow)
}

func TestGetMembership(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"state": "up", "draining": true})
	}))

	m, err := client.GetMembership(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, types.MembershipUp, m.State)
	assert.True(t, m.Draining)
}

func TestDo_ServiceUnavailableMapsToUnreachable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "node agent down"})
	}))

	_, err := client.GetMembership(context.Background(), "n2")

	var unreachable *fleet.UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, "n2", unreachable.Node)
	assert.Contains(t, unreachable.Error(), "node agent down")
}

func TestDo_ConnectionRefusedMapsToUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, err := NewClient(Config{Address: addr, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.GetComponent(context.Background(), "n1", types.CapabilityTransport)

	var unreachable *fleet.UnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestDo_NotFoundMapsToPrecondition(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown node"})
	}))

	err := client.Pause(context.Background(), "ghost")

	var precondition *fleet.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "ghost", precondition.Node)
	assert.Contains(t, precondition.Reason, "unknown node")
}

func TestDo_ContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.TriggerMove(ctx, "n1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRebalanceFleet(t *testing.T) {
	hit := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/fleet/rebalance", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		hit = true
	}))

	require.NoError(t, client.RebalanceFleet(context.Background()))
	assert.True(t, hit)
}
