package main

import (
	"fmt"
	"os"
	"time"

	"cluster-drift-monitor/pkg/config"
	"cluster-drift-monitor/pkg/scheduler"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <monitor>",
	Short: "Run a single cycle of one monitor (vm-node, deployments, thresholds)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if args[0] == "vm-node" {
			if err := a.startNodeIndex(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		if err := a.scheduler.RunNow(ctx, args[0]); err != nil {
			return fmt.Errorf("check %s failed: %w", args[0], err)
		}
		fmt.Printf("✓ %s finished in %s\n", args[0], time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print upcoming runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printSchedules(cfg, time.Now())
		return nil
	},
}

func printSchedules(cfg config.Config, now time.Time) {
	rows := []struct {
		name     string
		enabled  bool
		schedule string
	}{
		{"vm-node", cfg.Nodes.Enabled, cfg.Nodes.Schedule},
		{"deployments", cfg.Deployments.Enabled, cfg.Deployments.Schedule},
		{"thresholds", cfg.Thresholds.Enabled, cfg.Thresholds.Schedule},
	}

	fmt.Println("✓ Configuration is valid")
	fmt.Println()
	for _, r := range rows {
		if !r.enabled {
			fmt.Printf("  %-12s disabled\n", r.name)
			continue
		}
		next, err := scheduler.NextRun(r.schedule, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %-12s %v\n", r.name, err)
			continue
		}
		fmt.Printf("  %-12s %-20s next %s\n", r.name, r.schedule, next.Format(time.RFC3339))
	}
	if refs := cfg.DeploymentRefs(); cfg.Deployments.Enabled {
		fmt.Printf("\n  %d deployments monitored\n", len(refs))
	}
	if cfg.Thresholds.Enabled {
		fmt.Printf("  %d thresholds configured\n", len(cfg.Thresholds.Values))
	}
}
