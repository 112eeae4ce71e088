package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DeploymentDelimiter separates namespace and name in a deployment reference
const DeploymentDelimiter = "@"

// ScheduleParser accepts 5-field, 6-field (with seconds) and descriptor expressions
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Config struct {
	Kubeconfig     string        `yaml:"kubeconfig"`
	ClusterTimeout time.Duration `yaml:"clusterTimeout"`

	Platform    PlatformConfig    `yaml:"platform"`
	Libvirt     LibvirtConfig     `yaml:"libvirt"`
	Nodes       NodesConfig       `yaml:"nodes"`
	Deployments DeploymentsConfig `yaml:"deployments"`
	Thresholds  ThresholdsConfig  `yaml:"thresholds"`
	Notify      NotifyConfig      `yaml:"notify"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

type PlatformConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type LibvirtConfig struct {
	// URIs maps a region code to the libvirt connection URI serving it
	URIs    map[string]string `yaml:"uris"`
	Timeout time.Duration     `yaml:"timeout"`
}

type NodesConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Schedule       string   `yaml:"schedule"`
	RequiredLabels []string `yaml:"requiredLabels"`
	// JobIDTag is the VM tag holding the owning job id
	JobIDTag string `yaml:"jobIdTag"`
	// JobIDLabel is the node label holding the owning job id
	JobIDLabel string        `yaml:"jobIdLabel"`
	Resync     time.Duration `yaml:"resync"`
}

type DeploymentsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	// Names is a comma-separated list of name or namespace@name entries
	Names            string `yaml:"names"`
	DefaultNamespace string `yaml:"defaultNamespace"`
}

type ThresholdsConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Schedule    string           `yaml:"schedule"`
	Values      map[string]int64 `yaml:"values"`
	ResendDelay time.Duration    `yaml:"resendDelay"`
	// Sources lists stats providers: "platform", "metrics-server"
	Sources []string `yaml:"sources"`
}

type NotifyConfig struct {
	// Cooldown is the debounce window applied per alert stream
	Cooldown  time.Duration `yaml:"cooldown"`
	LogAlerts bool          `yaml:"logAlerts"`
	// KubernetesEvents mirrors node and deployment alerts as Warning events
	KubernetesEvents bool              `yaml:"kubernetesEvents"`
	DiscordWebhook   string            `yaml:"discordWebhook"`
	DiscordMinGap    time.Duration     `yaml:"discordMinInterval"`
	Templates        map[string]string `yaml:"templates"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DeploymentRef is one monitored deployment
type DeploymentRef struct {
	Namespace string
	Name      string
}

func (r DeploymentRef) String() string {
	return r.Namespace + "/" + r.Name
}

// Default returns a configuration with every monitor enabled and conservative schedules
func Default() Config {
	return Config{
		ClusterTimeout: 10 * time.Second,
		Platform: PlatformConfig{
			Timeout: 30 * time.Second,
		},
		Libvirt: LibvirtConfig{
			URIs:    map[string]string{},
			Timeout: 15 * time.Second,
		},
		Nodes: NodesConfig{
			Enabled:    true,
			Schedule:   "0 */5 * * * *",
			JobIDTag:   "Name",
			JobIDLabel: "runid",
			Resync:     10 * time.Minute,
		},
		Deployments: DeploymentsConfig{
			Enabled:          true,
			Schedule:         "0 * * * * *",
			DefaultNamespace: "default",
		},
		Thresholds: ThresholdsConfig{
			Enabled:     true,
			Schedule:    "0 */1 * * * *",
			Values:      map[string]int64{},
			ResendDelay: time.Hour,
			Sources:     []string{"platform"},
		},
		Notify: NotifyConfig{
			Cooldown:         30 * time.Minute,
			LogAlerts:        true,
			KubernetesEvents: true,
			DiscordMinGap:    time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of Default and applies environment fallbacks.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Platform.URL == "" {
		c.Platform.URL = os.Getenv("DRIFT_PLATFORM_URL")
	}
	if c.Platform.Token == "" {
		c.Platform.Token = os.Getenv("DRIFT_PLATFORM_TOKEN")
	}
	if c.Notify.DiscordWebhook == "" {
		c.Notify.DiscordWebhook = os.Getenv("DRIFT_DISCORD_WEBHOOK")
	}
}

func (c Config) Validate() error {
	var errs []error

	check := func(name string, enabled bool, spec string) {
		if !enabled {
			return
		}
		if _, err := ScheduleParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s.schedule %q: %w", name, spec, err))
		}
	}
	check("nodes", c.Nodes.Enabled, c.Nodes.Schedule)
	check("deployments", c.Deployments.Enabled, c.Deployments.Schedule)
	check("thresholds", c.Thresholds.Enabled, c.Thresholds.Schedule)

	if c.ClusterTimeout < 0 {
		errs = append(errs, errors.New("clusterTimeout must not be negative"))
	}
	if c.Thresholds.ResendDelay < 0 {
		errs = append(errs, errors.New("thresholds.resendDelay must not be negative"))
	}
	if c.Notify.Cooldown < 0 {
		errs = append(errs, errors.New("notify.cooldown must not be negative"))
	}
	if c.Nodes.Enabled && strings.TrimSpace(c.Nodes.JobIDTag) == "" {
		errs = append(errs, errors.New("nodes.jobIdTag is required"))
	}
	if c.Platform.URL != "" {
		if u, err := url.Parse(c.Platform.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("platform.url %q is not an absolute URL", c.Platform.URL))
		}
	}
	if c.needsPlatform() && c.Platform.URL == "" {
		errs = append(errs, errors.New("platform.url is required by the node and platform-backed threshold monitors"))
	}
	for _, src := range c.Thresholds.Sources {
		switch src {
		case "platform", "metrics-server":
		default:
			errs = append(errs, fmt.Errorf("thresholds.sources: unknown source %q", src))
		}
	}
	if strings.TrimSpace(c.Deployments.DefaultNamespace) == "" {
		errs = append(errs, errors.New("deployments.defaultNamespace is required"))
	}

	return errors.Join(errs...)
}

func (c Config) needsPlatform() bool {
	if c.Nodes.Enabled {
		return true
	}
	if !c.Thresholds.Enabled {
		return false
	}
	for _, src := range c.Thresholds.Sources {
		if src == "platform" {
			return true
		}
	}
	return false
}

// DeploymentRefs parses the configured deployment list
func (c Config) DeploymentRefs() []DeploymentRef {
	return ParseDeploymentRefs(c.Deployments.Names, c.Deployments.DefaultNamespace)
}

// ParseDeploymentRefs splits a comma-separated list of "name" or
// "namespace@name" entries. Blank entries are ignored.
func ParseDeploymentRefs(list, defaultNamespace string) []DeploymentRef {
	var refs []DeploymentRef
	for _, raw := range strings.Split(list, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		ns, name, found := strings.Cut(entry, DeploymentDelimiter)
		if !found {
			refs = append(refs, DeploymentRef{Namespace: defaultNamespace, Name: entry})
			continue
		}
		ns, name = strings.TrimSpace(ns), strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if ns == "" {
			ns = defaultNamespace
		}
		refs = append(refs, DeploymentRef{Namespace: ns, Name: name})
	}
	return refs
}
