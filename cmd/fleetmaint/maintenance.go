package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oakmail/fleetmaint/pkg/events"
	"github.com/oakmail/fleetmaint/pkg/types"
	"github.com/oakmail/fleetmaint/pkg/workflow"
)

var enterCmd = &cobra.Command{
	Use:   "enter NODE",
	Short: "Drain a node out of active service for maintenance",
	Long: `Drain NODE out of active service: stop accepting new mail, redirect
queued messages to a healthy peer in the same zone, suspend cluster
membership, relocate database copies and deactivate the node's
components. Once the maintenance state is confirmed the node can
optionally be rebooted or shut down.

Every step is idempotent; re-running after a partial failure resumes
where the previous run stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reboot, _ := cmd.Flags().GetBool("reboot")
		shutdown, _ := cmd.Flags().GetBool("shutdown")
		if reboot && shutdown {
			return fmt.Errorf("--reboot and --shutdown are mutually exclusive")
		}

		action := workflow.OSActionNone
		if reboot {
			action = workflow.OSActionReboot
		}
		if shutdown {
			action = workflow.OSActionShutdown
		}

		opts, err := workflowOptions(cmd)
		if err != nil {
			return err
		}
		opts.OSAction = action

		return runWorkflow(cmd, args[0], "enter", opts)
	},
}

var exitCmd = &cobra.Command{
	Use:   "exit NODE",
	Short: "Restore a node into active service after maintenance",
	Long: `Restore NODE into active service: reactivate its components, resume
cluster membership, re-enable automatic database activation and move
copies back to their preferred holder. Completion is gated on the node
reporting fully connected; a fleet-wide rebalance is then triggered in
the background.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := workflowOptions(cmd)
		if err != nil {
			return err
		}
		return runWorkflow(cmd, args[0], "exit", opts)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status NODE",
	Short: "Show a node's maintenance status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, err := buildEngine(cfg, nil, nil)
		if err != nil {
			return err
		}

		st, err := engine.Status().GetStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Node:              %s\n", st.NodeName)
		fmt.Printf("State:             %s\n", st.State)
		fmt.Printf("Membership:        %s\n", st.Membership)
		fmt.Printf("Active components: %d\n", st.ActiveComponents)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{enterCmd, exitCmd} {
		cmd.Flags().Bool("confirm-each-step", false, "Ask for confirmation before every step, not only destructive ones")
		cmd.Flags().Bool("dry-run", false, "Show which steps would run without performing any action")
		cmd.Flags().BoolP("yes", "y", false, "Answer yes to all confirmation prompts")
	}

	enterCmd.Flags().Bool("reboot", false, "Reboot the node once maintenance is confirmed")
	enterCmd.Flags().Bool("shutdown", false, "Shut the node down once maintenance is confirmed")
}

func workflowOptions(cmd *cobra.Command) (workflow.Options, error) {
	confirmEach, _ := cmd.Flags().GetBool("confirm-each-step")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return workflow.Options{
		ConfirmEachStep: confirmEach,
		DryRun:          dryRun,
	}, nil
}

// runWorkflow executes one maintenance workflow with progress output and
// Ctrl+C cancellation.
func runWorkflow(cmd *cobra.Command, node, direction string, opts workflow.Options) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	var confirmer workflow.Confirmer
	if !yes {
		confirmer = &stdinConfirmer{in: bufio.NewReader(os.Stdin)}
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	engine, err := buildEngine(cfg, broker, confirmer)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sub := broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		printProgress(sub)
	}()

	var final types.MaintenanceStatus
	if direction == "enter" {
		final, err = engine.EnterMaintenance(ctx, node, opts)
	} else {
		final, err = engine.ExitMaintenance(ctx, node, opts)
	}

	broker.Unsubscribe(sub)
	<-done

	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("✓ Node %s is now %s\n", node, final.State)
	return nil
}

// printProgress renders workflow events as CLI progress lines until the
// subscription closes.
func printProgress(sub events.Subscriber) {
	for event := range sub {
		switch event.Type {
		case events.EventWorkflowStarted:
			fmt.Printf("Starting: %s\n\n", event.Message)
		case events.EventStepStarted:
			fmt.Printf("[%d/%d] %s...\n", event.StepIndex, event.StepCount, event.Step)
		case events.EventStepSkipped:
			fmt.Printf("  - skipped: %s\n", event.Message)
		case events.EventStepCompleted:
			if event.Message != "" {
				fmt.Printf("  ✓ %s\n", event.Message)
			} else {
				fmt.Println("  ✓ done")
			}
		case events.EventStepWarning:
			fmt.Printf("  ! warning: %s\n", event.Message)
		case events.EventWorkflowAborted:
			fmt.Printf("  ✗ aborted: %s\n", event.Message)
		}
	}
}

// stdinConfirmer asks the operator on the terminal. Anything but y/yes
// declines.
type stdinConfirmer struct {
	in *bufio.Reader
}

func (c *stdinConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Printf("  ? %s. Continue? [y/N]: ", prompt)

	line, err := c.in.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
