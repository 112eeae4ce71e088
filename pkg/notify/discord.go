package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"text/template"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// Discord accepts at most this many embeds per webhook message
const maxEmbedsPerMessage = 10

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

var defaultTitles = map[string]string{
	TemplateMissingNode:        "VM without cluster node",
	TemplateNodeMissingLabels:  "Node missing required labels",
	TemplateMissingDeployment:  "Deployment missing",
	TemplateDeploymentNotReady: "Deployment not ready",
	TemplateThresholdExceeded:  "Threshold exceeded",
}

var defaultColors = map[string]int{
	TemplateMissingNode:        0xDC2626,
	TemplateNodeMissingLabels:  0xF59E0B,
	TemplateMissingDeployment:  0xDC2626,
	TemplateDeploymentNotReady: 0xF59E0B,
	TemplateThresholdExceeded:  0x2563EB,
}

// DefaultTemplates are the message bodies used when config does not override them
var DefaultTemplates = map[string]string{
	TemplateMissingNode:        `Instance {{.vmId}} ({{.vmIp}}, {{.vmProvider}}) is running but no cluster node is registered for it.`,
	TemplateNodeMissingLabels:  `Node {{.nodeName}} backing instance {{.vmId}} ({{.vmIp}}) is missing labels: {{join .missingLabels ", "}}.`,
	TemplateMissingDeployment:  `Deployment {{.namespace}}/{{.deploymentName}} does not exist.`,
	TemplateDeploymentNotReady: `Deployment {{.namespace}}/{{.deploymentName}} has {{.readyReplicas}} of {{.requiredReplicas}} replicas ready.`,
	TemplateThresholdExceeded:  `Metric {{.thresholdKey}} is {{.actual}}, above threshold {{.threshold}}.`,
}

// DiscordOptions tunes the webhook sink
type DiscordOptions struct {
	Username    string
	Footer      string
	Timeout     time.Duration
	MinInterval time.Duration
	Burst       int
	Templates   map[string]string
}

// DiscordSink renders alerts and posts them to a Discord webhook
type DiscordSink struct {
	webhookURL string
	username   string
	footer     string
	client     *http.Client
	limiter    *rate.Limiter
	templates  map[string]*template.Template
}

func NewDiscordSink(webhookURL string, opts DiscordOptions) (*DiscordSink, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, fmt.Errorf("discord webhook URL is empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	sources := make(map[string]string, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		sources[k] = v
	}
	for k, v := range opts.Templates {
		if strings.TrimSpace(v) != "" {
			sources[k] = v
		}
	}

	templates := make(map[string]*template.Template, len(sources))
	for key, src := range sources {
		tmpl, err := template.New(key).Funcs(template.FuncMap{"join": joinValue}).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", key, err)
		}
		templates[key] = tmpl
	}

	return &DiscordSink{
		webhookURL: strings.TrimSpace(webhookURL),
		username:   opts.Username,
		footer:     opts.Footer,
		client:     &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), opts.Burst),
		templates:  templates,
	}, nil
}

// Send posts all alerts, chunked to the Discord embed limit. Each post waits on the rate limiter.
func (s *DiscordSink) Send(ctx context.Context, alerts ...Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	embeds := make([]discordEmbed, 0, len(alerts))
	for _, a := range alerts {
		embeds = append(embeds, s.embed(a))
	}

	for start := 0; start < len(embeds); start += maxEmbedsPerMessage {
		end := start + maxEmbedsPerMessage
		if end > len(embeds) {
			end = len(embeds)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("discord rate limiter: %w", err)
		}
		if err := s.post(ctx, discordPayload{Username: s.username, Embeds: embeds[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// Render returns the message body for an alert
func (s *DiscordSink) Render(a Alert) string {
	tmpl, ok := s.templates[a.Template]
	if !ok {
		return fallbackText(a)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, a.Params); err != nil {
		klog.Warningf("Failed to render template %s: %v", a.Template, err)
		return fallbackText(a)
	}
	return buf.String()
}

func (s *DiscordSink) embed(a Alert) discordEmbed {
	title, ok := defaultTitles[a.Template]
	if !ok {
		title = a.Template
	}
	e := discordEmbed{
		Title:       title,
		Description: s.Render(a),
		Color:       defaultColors[a.Template],
		Timestamp:   a.Time.UTC().Format(time.RFC3339),
	}
	if s.footer != "" {
		e.Footer = &discordEmbedFooter{Text: s.footer}
	}
	return e
}

func (s *DiscordSink) post(ctx context.Context, payload discordPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func joinValue(v interface{}, sep string) string {
	switch vv := v.(type) {
	case []string:
		return strings.Join(vv, sep)
	case []interface{}:
		parts := make([]string, 0, len(vv))
		for _, p := range vv {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, sep)
	case nil:
		return ""
	default:
		return fmt.Sprint(vv)
	}
}

func fallbackText(a Alert) string {
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a.Params[k]))
	}
	return a.Template + ": " + strings.Join(parts, " ")
}
