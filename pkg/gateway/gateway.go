package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// Config holds gateway client configuration.
type Config struct {
	// Address is the admin gateway base URL, e.g. http://mail-admin:8710.
	Address string

	// Timeout bounds each individual request.
	Timeout time.Duration

	// HTTPClient overrides the transport; nil uses a default client with
	// Timeout applied.
	HTTPClient *http.Client
}

// Client talks to the fleet admin gateway over HTTP/JSON. It implements
// every collaborator contract in pkg/fleet except Topology, which is
// served by the static inventory.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway address %q: %w", cfg.Address, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway address %q must include scheme and host", cfg.Address)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:   base,
		http:   httpClient,
		logger: log.WithComponent("gateway"),
	}, nil
}

// Wire shapes of the admin gateway API.

type componentResponse struct {
	State types.ComponentState `json:"state"`
}

type componentRequest struct {
	State     types.ComponentState `json:"state"`
	Requester string               `json:"requester"`
}

type countResponse struct {
	Count int `json:"count"`
}

type membershipResponse struct {
	State    types.MembershipState `json:"state"`
	Draining bool                  `json:"draining"`
}

type depthResponse struct {
	Depth int `json:"depth"`
}

type redirectRequest struct {
	Target string `json:"target"`
}

type copyRecord struct {
	Database        string                 `json:"database"`
	Node            string                 `json:"node"`
	Status          types.CopyStatus       `json:"status"`
	Policy          types.ActivationPolicy `json:"activation_policy"`
	MoveNow         bool                   `json:"move_now"`
	Replication     types.ReplicationKind  `json:"replication"`
	MountAtStartup  bool                   `json:"mount_at_startup"`
	PreferredHolder string                 `json:"preferred_holder"`
}

type policyRequest struct {
	Policy types.ActivationPolicy `json:"activation_policy"`
}

type moveNowRequest struct {
	MoveNow bool `json:"move_now"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- ComponentStateStore ---

func (c *Client) GetComponent(ctx context.Context, node string, capability types.Capability) (types.ComponentState, error) {
	var resp componentResponse
	path := fmt.Sprintf("/v1/nodes/%s/components/%s", url.PathEscape(node), url.PathEscape(string(capability)))
	if err := c.do(ctx, http.MethodGet, path, node, nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

func (c *Client) SetComponent(ctx context.Context, node string, capability types.Capability, state types.ComponentState, requester string) error {
	path := fmt.Sprintf("/v1/nodes/%s/components/%s", url.PathEscape(node), url.PathEscape(string(capability)))
	return c.do(ctx, http.MethodPut, path, node, componentRequest{State: state, Requester: requester}, nil)
}

func (c *Client) CountActive(ctx context.Context, node string) (int, error) {
	var resp countResponse
	path := fmt.Sprintf("/v1/nodes/%s/components?state=%s", url.PathEscape(node), types.ComponentActive)
	if err := c.do(ctx, http.MethodGet, path, node, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --- ClusterMembershipStore ---

func (c *Client) GetMembership(ctx context.Context, node string) (types.Membership, error) {
	var resp membershipResponse
	path := fmt.Sprintf("/v1/nodes/%s/membership", url.PathEscape(node))
	if err := c.do(ctx, http.MethodGet, path, node, nil, &resp); err != nil {
		return types.Membership{}, err
	}
	return types.Membership{State: resp.State, Draining: resp.Draining}, nil
}

func (c *Client) Pause(ctx context.Context, node string) error {
	path := fmt.Sprintf("/v1/nodes/%s/membership/pause", url.PathEscape(node))
	return c.do(ctx, http.MethodPost, path, node, nil, nil)
}

func (c *Client) Resume(ctx context.Context, node string) error {
	path := fmt.Sprintf("/v1/nodes/%s/membership/resume", url.PathEscape(node))
	return c.do(ctx, http.MethodPost, path, node, nil, nil)
}

// --- QueueStore ---

func (c *Client) GetDepth(ctx context.Context, node string, exclude []types.QueueClass) (int, error) {
	query := url.Values{}
	for _, class := range exclude {
		query.Add("exclude", string(class))
	}
	path := fmt.Sprintf("/v1/nodes/%s/queues/depth", url.PathEscape(node))
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp depthResponse
	if err := c.do(ctx, http.MethodGet, path, node, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Depth, nil
}

func (c *Client) Redirect(ctx context.Context, node, target string) error {
	path := fmt.Sprintf("/v1/nodes/%s/queues/redirect", url.PathEscape(node))
	return c.do(ctx, http.MethodPost, path, node, redirectRequest{Target: target}, nil)
}

// --- DatabaseCopyStore ---

func (c *Client) ListByHolder(ctx context.Context, node string) ([]*types.DatabaseCopy, error) {
	var records []copyRecord
	path := fmt.Sprintf("/v1/nodes/%s/copies", url.PathEscape(node))
	if err := c.do(ctx, http.MethodGet, path, node, nil, &records); err != nil {
		return nil, err
	}

	copies := make([]*types.DatabaseCopy, len(records))
	for i, r := range records {
		copies[i] = &types.DatabaseCopy{
			Database:        r.Database,
			Node:            r.Node,
			Status:          r.Status,
			Policy:          r.Policy,
			MoveNow:         r.MoveNow,
			Replication:     r.Replication,
			MountAtStartup:  r.MountAtStartup,
			PreferredHolder: r.PreferredHolder,
		}
	}
	return copies, nil
}

func (c *Client) SetActivationPolicy(ctx context.Context, node string, policy types.ActivationPolicy) error {
	path := fmt.Sprintf("/v1/nodes/%s/copies/activation-policy", url.PathEscape(node))
	return c.do(ctx, http.MethodPut, path, node, policyRequest{Policy: policy}, nil)
}

func (c *Client) SetMoveNow(ctx context.Context, node string, moveNow bool) error {
	path := fmt.Sprintf("/v1/nodes/%s/copies/move-now", url.PathEscape(node))
	return c.do(ctx, http.MethodPut, path, node, moveNowRequest{MoveNow: moveNow}, nil)
}

func (c *Client) TriggerMove(ctx context.Context, node string) error {
	path := fmt.Sprintf("/v1/nodes/%s/copies/move", url.PathEscape(node))
	return c.do(ctx, http.MethodPost, path, node, nil, nil)
}

func (c *Client) Dismount(ctx context.Context, copy *types.DatabaseCopy) error {
	path := fmt.Sprintf("/v1/nodes/%s/copies/%s/dismount", url.PathEscape(copy.Node), url.PathEscape(copy.Database))
	return c.do(ctx, http.MethodPost, path, copy.Node, nil, nil)
}

func (c *Client) Mount(ctx context.Context, copy *types.DatabaseCopy) error {
	path := fmt.Sprintf("/v1/nodes/%s/copies/%s/mount", url.PathEscape(copy.Node), url.PathEscape(copy.Database))
	return c.do(ctx, http.MethodPost, path, copy.Node, nil, nil)
}

// --- OSControl ---

func (c *Client) Reboot(ctx context.Context, node string) error {
	path := fmt.Sprintf("/v1/nodes/%s/reboot", url.PathEscape(node))
	return c.do(ctx, http.MethodPost, path, node, nil, nil)
}

func (c *Client) Shutdown(ctx context.Context, node string) error {
	path := fmt.Sprintf("/v1/nodes/%s/shutdown", url.PathEscape(node))
	return c.do(ctx, http.MethodPost, path, node, nil, nil)
}

// --- Rebalancer ---

func (c *Client) RebalanceFleet(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/fleet/rebalance", "", nil, nil)
}

// do sends one request and decodes the response into out when non-nil.
// Transport failures and 502/503/504 map to UnreachableError so callers can
// tell "node cannot be queried" apart from "gateway said no"; 404/409/412
// map to PreconditionError.
func (c *Client) do(ctx context.Context, method, path, node string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("method", method).Str("path", path).Msg("gateway request")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &fleet.UnreachableError{Node: node, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
		return nil

	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return &fleet.UnreachableError{
			Node: node,
			Err:  fmt.Errorf("gateway returned %s: %s", resp.Status, readError(resp.Body)),
		}

	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusPreconditionFailed:
		return &fleet.PreconditionError{Node: node, Reason: readError(resp.Body)}

	default:
		return fmt.Errorf("%s %s failed: %s: %s", method, path, resp.Status, readError(resp.Body))
	}
}

// readError extracts the gateway's error message, falling back to the raw
// body for non-JSON responses.
func readError(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
