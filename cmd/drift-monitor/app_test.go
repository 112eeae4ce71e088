package main

import (
	"context"
	"testing"

	"cluster-drift-monitor/pkg/config"
	"cluster-drift-monitor/pkg/notify"
)

func minimalConfig() config.Config {
	cfg := config.Default()
	cfg.Nodes.Enabled = false
	cfg.Deployments.Enabled = false
	cfg.Thresholds.Sources = nil
	cfg.Notify.LogAlerts = true
	return cfg
}

func TestNewApp_SchedulesEveryMonitor(t *testing.T) {
	a, err := newApp(minimalConfig())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.close()

	names := a.scheduler.Names()
	want := []string{"vm-node", "deployments", "thresholds"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected monitor %d to be %s, got %s", i, want[i], names[i])
		}
	}

	// Disabled monitors are skipped, thresholds has nothing configured
	for _, name := range names {
		if err := a.scheduler.RunNow(context.Background(), name); err != nil {
			t.Errorf("RunNow(%s) failed: %v", name, err)
		}
	}
	if a.nodes != nil {
		t.Error("Expected no node index with the node monitor disabled")
	}
}

func TestNewApp_InvalidDiscordTemplate(t *testing.T) {
	cfg := minimalConfig()
	cfg.Notify.DiscordWebhook = "https://discord.example/webhook"
	cfg.Notify.Templates = map[string]string{"missing-node": "{{.vmId"}

	if _, err := newApp(cfg); err == nil {
		t.Error("Expected template parse error")
	}
}

func TestUsesSource(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds.Sources = []string{"platform", "Metrics-Server"}

	if !usesSource(cfg, "metrics-server") {
		t.Error("Expected metrics-server source to be detected")
	}
	cfg.Thresholds.Enabled = false
	if usesSource(cfg, "platform") {
		t.Error("Expected no sources when thresholds are disabled")
	}
}

func TestBuildSinks_OnePerConfiguredTarget(t *testing.T) {
	cfg := minimalConfig()
	cfg.Notify.DiscordWebhook = "https://discord.example/webhook"

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.close()

	sinks, err := a.buildSinks()
	if err != nil {
		t.Fatalf("buildSinks failed: %v", err)
	}
	var names []string
	for _, s := range sinks {
		c, ok := s.(notify.Counting)
		if !ok {
			t.Fatalf("Expected every sink to be counted, got %T", s)
		}
		names = append(names, c.Name)
	}
	if len(names) != 2 || names[0] != "log" || names[1] != "discord" {
		t.Errorf("Expected [log discord], got %v", names)
	}
}
