// Package fleettest provides an in-memory fake fleet implementing every
// collaborator contract in pkg/fleet. Tests across the repository share it
// instead of re-declaring per-package stubs.
package fleettest

import (
	"context"
	"sync"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// ComponentCall records one SetComponent mutation.
type ComponentCall struct {
	Node       string
	Capability types.Capability
	State      types.ComponentState
	Requester  string
}

// RedirectCall records one queue redirection.
type RedirectCall struct {
	Node   string
	Target string
}

// Fake is an in-memory fleet. The zero value is not usable; construct with
// New. All methods are safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	nodes       []*types.Node
	byName      map[string]*types.Node
	components  map[string]map[types.Capability]types.ComponentState
	extraActive map[string]int
	memberships map[string]types.Membership
	queues      map[string]map[types.QueueClass]int
	copies      []*types.DatabaseCopy
	unreachable map[string]bool

	// Behavior knobs. Actions complete instantly unless told otherwise, so
	// convergence loops observe their post-state on the first probe.
	RedirectStalls bool // Redirect leaves queue depth untouched
	MoveStalls     bool // TriggerMove leaves copies mounted
	PauseStalls    bool // Pause leaves membership Up with Draining set

	// Recorded mutations.
	ComponentCalls []ComponentCall
	RedirectCalls  []RedirectCall
	PauseCalls     int
	ResumeCalls    int
	MoveCalls      int
	PolicyCalls    []types.ActivationPolicy
	MoveNowCalls   []bool
	DismountCalls  []string
	MountCalls     []string
	Reboots        []string
	Shutdowns      []string
	RebalanceCalls int
}

// New creates an empty fake fleet.
func New() *Fake {
	return &Fake{
		byName:      make(map[string]*types.Node),
		components:  make(map[string]map[types.Capability]types.ComponentState),
		extraActive: make(map[string]int),
		memberships: make(map[string]types.Membership),
		queues:      make(map[string]map[types.QueueClass]int),
		unreachable: make(map[string]bool),
	}
}

// AddNode registers a fleet node with both tracked components Active and
// membership Up, i.e. macro-state Connected.
func (f *Fake) AddNode(node *types.Node) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nodes = append(f.nodes, node)
	f.byName[node.Name] = node
	f.components[node.Name] = map[types.Capability]types.ComponentState{
		types.CapabilityTransport:   types.ComponentActive,
		types.CapabilityWideOffline: types.ComponentActive,
	}
	f.memberships[node.Name] = types.Membership{State: types.MembershipUp}
	f.queues[node.Name] = map[types.QueueClass]int{}
	return f
}

// SetComponents forces both tracked components to the given state.
func (f *Fake) SetComponents(node string, state types.ComponentState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range types.TrackedCapabilities {
		f.components[node][c] = state
	}
}

// SetMembership overrides a node's membership record.
func (f *Fake) SetMembership(node string, m types.Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[node] = m
}

// SetQueueDepth sets the queued-message count for one delivery class.
func (f *Fake) SetQueueDepth(node string, class types.QueueClass, depth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[node][class] = depth
}

// AddCopy registers a database copy.
func (f *Fake) AddCopy(c *types.DatabaseCopy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, c)
}

// SetUnreachable marks a node as unqueryable; reads against it return
// UnreachableError.
func (f *Fake) SetUnreachable(node string, unreachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[node] = unreachable
}

// SetExtraActive adds active components beyond the two tracked
// capabilities, feeding CountActive.
func (f *Fake) SetExtraActive(node string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extraActive[node] = n
}

func (f *Fake) checkReachable(node string) error {
	if f.unreachable[node] {
		return &fleet.UnreachableError{Node: node}
	}
	if _, ok := f.byName[node]; !ok {
		return &fleet.PreconditionError{Node: node, Reason: "not in fake fleet"}
	}
	return nil
}

// --- ComponentStateStore ---

func (f *Fake) GetComponent(ctx context.Context, node string, capability types.Capability) (types.ComponentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return "", err
	}
	return f.components[node][capability], nil
}

func (f *Fake) SetComponent(ctx context.Context, node string, capability types.Capability, state types.ComponentState, requester string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.components[node][capability] = state
	f.ComponentCalls = append(f.ComponentCalls, ComponentCall{
		Node:       node,
		Capability: capability,
		State:      state,
		Requester:  requester,
	})
	return nil
}

func (f *Fake) CountActive(ctx context.Context, node string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return 0, err
	}
	count := f.extraActive[node]
	for _, state := range f.components[node] {
		if state == types.ComponentActive {
			count++
		}
	}
	return count, nil
}

// --- ClusterMembershipStore ---

func (f *Fake) GetMembership(ctx context.Context, node string) (types.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return types.Membership{}, err
	}
	return f.memberships[node], nil
}

func (f *Fake) Pause(ctx context.Context, node string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.PauseCalls++
	if f.PauseStalls {
		f.memberships[node] = types.Membership{State: types.MembershipUp, Draining: true}
		return nil
	}
	f.memberships[node] = types.Membership{State: types.MembershipPaused}
	return nil
}

func (f *Fake) Resume(ctx context.Context, node string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.ResumeCalls++
	f.memberships[node] = types.Membership{State: types.MembershipUp}
	return nil
}

// --- QueueStore ---

func (f *Fake) GetDepth(ctx context.Context, node string, exclude []types.QueueClass) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return 0, err
	}
	excluded := make(map[types.QueueClass]bool, len(exclude))
	for _, class := range exclude {
		excluded[class] = true
	}
	depth := 0
	for class, n := range f.queues[node] {
		if !excluded[class] {
			depth += n
		}
	}
	return depth, nil
}

func (f *Fake) Redirect(ctx context.Context, node, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.RedirectCalls = append(f.RedirectCalls, RedirectCall{Node: node, Target: target})
	if f.RedirectStalls {
		return nil
	}
	moved := f.queues[node][types.QueueClassNormal]
	f.queues[node][types.QueueClassNormal] = 0
	f.queues[target][types.QueueClassNormal] += moved
	return nil
}

// --- DatabaseCopyStore ---

func (f *Fake) ListByHolder(ctx context.Context, node string) ([]*types.DatabaseCopy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return nil, err
	}
	var out []*types.DatabaseCopy
	for _, c := range f.copies {
		if c.Node == node {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Fake) SetActivationPolicy(ctx context.Context, node string, policy types.ActivationPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.PolicyCalls = append(f.PolicyCalls, policy)
	for _, c := range f.copies {
		if c.Node == node {
			c.Policy = policy
		}
	}
	return nil
}

func (f *Fake) SetMoveNow(ctx context.Context, node string, moveNow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.MoveNowCalls = append(f.MoveNowCalls, moveNow)
	for _, c := range f.copies {
		if c.Node == node {
			c.MoveNow = moveNow
		}
	}
	return nil
}

func (f *Fake) TriggerMove(ctx context.Context, node string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(node); err != nil {
		return err
	}
	f.MoveCalls++
	if f.MoveStalls {
		return nil
	}
	for _, c := range f.copies {
		if c.Node != node || c.Replication != types.ReplicationReplicated {
			continue
		}
		// Blocked copies move away; unblocked preferred copies come home.
		if c.Status == types.CopyMounted && (c.Policy == types.ActivationBlocked || c.MoveNow) {
			c.Status = types.CopyHealthy
		} else if c.Status == types.CopyHealthy && c.Policy == types.ActivationUnrestricted && !c.MoveNow && c.PreferredHolder == node {
			c.Status = types.CopyMounted
		}
	}
	return nil
}

func (f *Fake) Dismount(ctx context.Context, copy *types.DatabaseCopy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DismountCalls = append(f.DismountCalls, copy.Database)
	copy.Status = types.CopyDismounted
	copy.MountAtStartup = false
	return nil
}

func (f *Fake) Mount(ctx context.Context, copy *types.DatabaseCopy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MountCalls = append(f.MountCalls, copy.Database)
	copy.Status = types.CopyMounted
	copy.MountAtStartup = true
	return nil
}

// --- Topology ---

func (f *Fake) ListNodes(ctx context.Context) ([]*types.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Node, len(f.nodes))
	copy(out, f.nodes)
	return out, nil
}

func (f *Fake) GetNode(ctx context.Context, name string) (*types.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.byName[name]
	if !ok {
		return nil, &fleet.PreconditionError{Node: name, Reason: "not in fleet inventory"}
	}
	return node, nil
}

// --- OSControl ---

func (f *Fake) Reboot(ctx context.Context, node string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reboots = append(f.Reboots, node)
	return nil
}

func (f *Fake) Shutdown(ctx context.Context, node string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Shutdowns = append(f.Shutdowns, node)
	return nil
}

// --- Rebalancer ---

func (f *Fake) RebalanceFleet(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RebalanceCalls++
	return nil
}

// Rebalanced returns the rebalance call count. RebalanceFleet is invoked
// from a workflow goroutine, so tests must read through this accessor.
func (f *Fake) Rebalanced() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RebalanceCalls
}

// MountedCount returns the number of copies currently mounted on node.
func (f *Fake) MountedCount(node string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.copies {
		if c.Node == node && c.Status == types.CopyMounted {
			count++
		}
	}
	return count
}
