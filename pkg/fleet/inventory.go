package fleet

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oakmail/fleetmaint/pkg/types"
)

// inventoryFile is the on-disk shape of fleet.yaml.
type inventoryFile struct {
	Nodes []inventoryNode `yaml:"nodes"`
}

type inventoryNode struct {
	Name          string `yaml:"name"`
	Zone          string `yaml:"zone"`
	DAG           string `yaml:"dag,omitempty"`
	NonProduction bool   `yaml:"non_production,omitempty"`
}

// Inventory is a Topology backed by a static YAML inventory file. Node
// order follows file order, which the drain planner treats as discovery
// order for zone sequencing.
type Inventory struct {
	nodes  []*types.Node
	byName map[string]*types.Node
}

// LoadInventory reads and validates a fleet.yaml inventory.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return ParseInventory(data)
}

// ParseInventory parses inventory YAML.
func ParseInventory(data []byte) (*Inventory, error) {
	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("inventory declares no nodes")
	}

	inv := &Inventory{
		byName: make(map[string]*types.Node, len(file.Nodes)),
	}
	for i, n := range file.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("inventory node %d has no name", i)
		}
		if n.Zone == "" {
			return nil, fmt.Errorf("inventory node %s has no zone", n.Name)
		}
		if _, ok := inv.byName[n.Name]; ok {
			return nil, fmt.Errorf("inventory declares node %s twice", n.Name)
		}

		node := &types.Node{
			Name:          n.Name,
			Zone:          n.Zone,
			DAG:           n.DAG,
			NonProduction: n.NonProduction,
		}
		inv.nodes = append(inv.nodes, node)
		inv.byName[n.Name] = node
	}

	return inv, nil
}

// ListNodes returns all inventory nodes in file order.
func (inv *Inventory) ListNodes(ctx context.Context) ([]*types.Node, error) {
	out := make([]*types.Node, len(inv.nodes))
	copy(out, inv.nodes)
	return out, nil
}

// GetNode returns the named node, or a PreconditionError when the node is
// not part of the managed fleet.
func (inv *Inventory) GetNode(ctx context.Context, name string) (*types.Node, error) {
	node, ok := inv.byName[name]
	if !ok {
		return nil, &PreconditionError{Node: name, Reason: "not in fleet inventory"}
	}
	return node, nil
}
