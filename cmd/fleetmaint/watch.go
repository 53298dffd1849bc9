package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakmail/fleetmaint/pkg/metrics"
	"github.com/oakmail/fleetmaint/pkg/probe"
	"github.com/oakmail/fleetmaint/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously display fleet maintenance status",
	Long: `Poll every fleet node on an interval and render a status table.

The watch loop is strictly read-only. Fleet gauges are exported on the
metrics listener for Prometheus scraping, alongside a /healthz endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval == 0 {
			interval = cfg.Watch.Interval
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if metricsAddr == "" {
			metricsAddr = cfg.Watch.MetricsAddr
		}

		engine, err := buildEngine(cfg, nil, nil)
		if err != nil {
			return err
		}
		engine.SetProber(tcpProberAdapter{
			prober: probe.NewTCPProber(cfg.Watch.ProbePort).WithTimeout(cfg.Watch.ProbeTimeout),
		})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		server := startMetricsServer(metricsAddr)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()

		fmt.Printf("Watching fleet every %s (metrics on %s). Press Ctrl+C to stop.\n\n", interval, metricsAddr)

		for snapshot := range engine.Watch(ctx, interval) {
			metrics.ObserveSnapshot(snapshot)
			renderSnapshot(snapshot)
		}

		fmt.Println("\nWatch stopped.")
		return nil
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "Refresh interval (default from config)")
	watchCmd.Flags().String("metrics-addr", "", "Metrics listen address (default from config)")
}

// tcpProberAdapter narrows the probe result to what watch snapshots carry.
type tcpProberAdapter struct {
	prober *probe.TCPProber
}

func (a tcpProberAdapter) Probe(ctx context.Context, node string) (time.Duration, bool) {
	result := a.prober.Probe(ctx, node)
	return result.Latency, result.Reachable
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	return server
}

func renderSnapshot(snapshot types.Snapshot) {
	fmt.Printf("--- %s ---\n", snapshot.TakenAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tZONE\tDAG\tSTATE\tMEMBERSHIP\tACTIVE\tLATENCY")
	for _, ns := range snapshot.Nodes {
		dag := ns.Node.DAG
		if dag == "" {
			dag = "-"
		}

		if ns.Err != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\tunreachable\t-\t-\t-\n", ns.Node.Name, ns.Node.Zone, dag)
			continue
		}

		latency := "-"
		if ns.Node.Reachable {
			latency = ns.Node.Latency.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			ns.Node.Name, ns.Node.Zone, dag,
			ns.Status.State, ns.Status.Membership, ns.Status.ActiveComponents, latency)
	}
	w.Flush()
	fmt.Println()
}
