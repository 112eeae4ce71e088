package main

import (
	"flag"
	"fmt"
	"os"

	"cluster-drift-monitor/pkg/config"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

var (
	configPath string
	kubeconfig string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drift-monitor",
	Short: "Reconcile cloud VMs against cluster nodes and alert on drift",
	Long: `drift-monitor periodically checks that every running cloud VM is
backed by a correctly labeled cluster node, that monitored deployments are
fully ready, and that cluster statistics stay under their thresholds.
Findings are debounced and sent to the configured notification sinks.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("drift-monitor version %s\nCommit: %s\n", Version, Commit))

	goflags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goflags)
	rootCmd.PersistentFlags().AddGoFlagSet(goflags)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig (in-cluster config when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if kubeconfig != "" {
		cfg.Kubeconfig = kubeconfig
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
