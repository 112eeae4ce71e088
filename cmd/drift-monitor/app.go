package main

import (
	"context"
	"fmt"
	"strings"

	"cluster-drift-monitor/pkg/cloud"
	"cluster-drift-monitor/pkg/cluster"
	"cluster-drift-monitor/pkg/config"
	"cluster-drift-monitor/pkg/events"
	"cluster-drift-monitor/pkg/logger"
	"cluster-drift-monitor/pkg/metrics"
	"cluster-drift-monitor/pkg/models"
	"cluster-drift-monitor/pkg/monitor"
	"cluster-drift-monitor/pkg/notify"
	"cluster-drift-monitor/pkg/platform"
	"cluster-drift-monitor/pkg/safety"
	"cluster-drift-monitor/pkg/scheduler"
	"cluster-drift-monitor/pkg/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
)

const metricsNamespace = "drift_monitor"

// app holds the wired components of one process
type app struct {
	cfg       config.Config
	log       *logger.Logger
	registry  *prometheus.Registry
	exporter  *metrics.PrometheusExporter
	scheduler *scheduler.Scheduler

	kubeClient kubernetes.Interface
	nodes      *cluster.NodeIndex
	libvirt    *cloud.LibvirtStrategy
	stopEvents func()
}

func newApp(cfg config.Config) (*app, error) {
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	exporter := metrics.NewPrometheusExporter(metricsNamespace, registry)

	a := &app{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		exporter:  exporter,
		scheduler: scheduler.New(exporter),
	}

	var (
		restConfig *rest.Config
		kubeClient kubernetes.Interface
	)
	if cfg.Nodes.Enabled || cfg.Deployments.Enabled || usesSource(cfg, "metrics-server") {
		restConfig, err = cluster.RESTConfig(cfg.Kubeconfig, cfg.ClusterTimeout)
		if err != nil {
			return nil, err
		}
		kubeClient, err = cluster.NewClientset(restConfig)
		if err != nil {
			return nil, err
		}
		a.kubeClient = kubeClient
	}

	var platformClient *platform.Client
	if cfg.Platform.URL != "" {
		platformClient, err = platform.NewClient(platform.Config{
			URL:     cfg.Platform.URL,
			Token:   cfg.Platform.Token,
			Timeout: cfg.Platform.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	sinks, err := a.buildSinks()
	if err != nil {
		return nil, err
	}
	debounced := notify.DebounceEach(sinks, cfg.Notify.Cooldown, nil, func(dropped int) {
		exporter.RecordAlertSuppressed("debounce", dropped)
	})

	var vmNode monitor.Monitor
	if cfg.Nodes.Enabled {
		strategies := cloud.NewRegistry()
		if len(cfg.Libvirt.URIs) > 0 {
			a.libvirt = cloud.NewLibvirtStrategy(cfg.Libvirt.URIs, cfg.Libvirt.Timeout)
			if err := strategies.Register(models.ProviderKVM, a.libvirt); err != nil {
				return nil, err
			}
		}
		klog.Infof("VM fetch strategies registered for providers %v", strategies.Providers())

		a.nodes = cluster.NewNodeIndex(kubeClient, cfg.Nodes.JobIDLabel, cfg.Nodes.Resync)
		vmNode = monitor.NewVMNodeReconciler(
			platformClient,
			strategies,
			a.nodes,
			platformClient,
			debounced,
			monitor.VMNodeOptions{
				RequiredLabels: cfg.Nodes.RequiredLabels,
				JobIDTag:       cfg.Nodes.JobIDTag,
			},
		).WithRecorder(exporter)
	}

	var deployments monitor.Monitor
	if cfg.Deployments.Enabled {
		deployments = monitor.NewDeploymentMonitor(
			cluster.NewDeploymentClient(kubeClient, cfg.ClusterTimeout),
			cfg.DeploymentRefs(),
			debounced,
		)
	}

	var thresholds monitor.Monitor
	if cfg.Thresholds.Enabled {
		sources := stats.Merged{}
		for _, name := range cfg.Thresholds.Sources {
			switch name {
			case "platform":
				sources = append(sources, stats.Named{Name: name, Source: platformClient})
			case "metrics-server":
				usage, err := stats.NewNodeUsageSource(restConfig)
				if err != nil {
					return nil, err
				}
				sources = append(sources, stats.Named{Name: name, Source: usage})
			}
		}
		thresholds = monitor.NewThresholdMonitor(sources, cfg.Thresholds.Values, cfg.Thresholds.ResendDelay, sinks...).
			WithSuppressionRecorder(exporter)
	}

	entries := []scheduler.Entry{
		{Name: "vm-node", Schedule: cfg.Nodes.Schedule, Monitor: vmNode, Enabled: cfg.Nodes.Enabled},
		{Name: "deployments", Schedule: cfg.Deployments.Schedule, Monitor: deployments, Enabled: cfg.Deployments.Enabled},
		{Name: "thresholds", Schedule: cfg.Thresholds.Schedule, Monitor: thresholds, Enabled: cfg.Thresholds.Enabled},
	}
	for _, e := range entries {
		if err := a.scheduler.Add(e); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// buildSinks returns the delivery sinks shared by all monitors, each counted
// on its own. Callers keep cooldown state per sink.
func (a *app) buildSinks() ([]notify.Sink, error) {
	var sinks []notify.Sink
	counted := func(name string, sink notify.Sink) notify.Sink {
		return notify.Counting{Name: name, Sink: sink, Recorder: a.exporter}
	}
	if a.cfg.Notify.LogAlerts {
		sinks = append(sinks, counted("log", notify.NewLogSink(a.log)))
	}
	if a.cfg.Notify.DiscordWebhook != "" {
		discord, err := notify.NewDiscordSink(a.cfg.Notify.DiscordWebhook, notify.DiscordOptions{
			Username:    "drift-monitor",
			Footer:      "drift-monitor " + Version,
			MinInterval: a.cfg.Notify.DiscordMinGap,
			Templates:   a.cfg.Notify.Templates,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, counted("discord", safety.NewCircuitBreaker("discord", discord, safety.BreakerOptions{})))
	}
	if a.cfg.Notify.KubernetesEvents && a.kubeClient != nil {
		recorder, stop := events.NewBroadcastRecorder(a.kubeClient)
		a.stopEvents = stop
		sinks = append(sinks, counted("events", events.NewEventSink(recorder)))
	}
	if len(sinks) == 0 {
		klog.Warning("No notification sinks configured, alerts will only be logged by their monitors")
	}
	return sinks, nil
}

// startNodeIndex syncs the node cache when the node monitor is active
func (a *app) startNodeIndex(ctx context.Context) error {
	if a.nodes == nil {
		return nil
	}
	return a.nodes.Start(ctx)
}

func (a *app) close() {
	if a.stopEvents != nil {
		a.stopEvents()
	}
	if a.libvirt != nil {
		if err := a.libvirt.Close(); err != nil {
			klog.Warningf("Failed to close libvirt connections: %v", err)
		}
	}
	_ = a.log.Sync()
}

func usesSource(cfg config.Config, name string) bool {
	if !cfg.Thresholds.Enabled {
		return false
	}
	for _, s := range cfg.Thresholds.Sources {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
