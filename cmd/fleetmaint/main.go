package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakmail/fleetmaint/pkg/config"
	"github.com/oakmail/fleetmaint/pkg/events"
	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/gateway"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/poll"
	"github.com/oakmail/fleetmaint/pkg/workflow"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetmaint",
	Short: "Fleetmaint - maintenance workflows for mail-transport fleets",
	Long: `Fleetmaint drains mail-transport/storage nodes out of a clustered
fleet for planned maintenance and restores them afterwards.

Entering maintenance stops new work, redirects queued messages to a
healthy peer, suspends cluster membership and relocates database copies
before the node is handed to the operator. Exiting reverses the drain
and confirms the node is fully connected again.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Fleetmaint version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yaml, /etc/fleetmaint/config.yaml)")

	rootCmd.AddCommand(enterCmd)
	rootCmd.AddCommand(exitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig loads configuration and initializes the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Logging.Level),
		JSONOutput: cfg.Logging.Format == "json",
		Output:     os.Stderr,
	})
	return cfg, nil
}

// buildEngine wires the workflow engine from configuration: topology from
// the static inventory, every other collaborator from the admin gateway.
func buildEngine(cfg *config.Config, broker *events.Broker, confirmer workflow.Confirmer) (*workflow.Engine, error) {
	inventory, err := fleet.LoadInventory(cfg.Inventory)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.NewClient(gateway.Config{
		Address: cfg.Gateway.Address,
		Timeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return workflow.NewEngine(workflow.Config{
		Topology:           inventory,
		Components:         gw,
		Membership:         gw,
		Queues:             gw,
		Copies:             gw,
		OSControl:          gw,
		Rebalancer:         gw,
		Broker:             broker,
		Confirmer:          confirmer,
		Converge:           pollConfig(cfg.Workflow.Converge),
		MembershipConverge: pollConfig(cfg.Membership),
		RelocationConverge: pollConfig(cfg.Relocation),
		Requester:          cfg.Workflow.Requester,
	}), nil
}

func pollConfig(cc config.ConvergeConfig) poll.Config {
	return poll.Config{
		Interval:   cc.Interval,
		MaxRetries: cc.MaxRetries,
	}
}
