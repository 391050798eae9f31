// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NickB03/vana/internal/pool"
)

// Rendered file names.
const (
	PrometheusFile = "prometheus.yml"
	AlertsFile     = "alerts.yml"
	DatadogFile    = "datadog-openmetrics.yaml"
)

// Thresholds configure the alert rules.
type Thresholds struct {
	ErrorRate  float64       `yaml:"error_rate"`
	LatencyP95 time.Duration `yaml:"latency_p95"`
	// MinCacheHitRate alerts when the search cache hit rate falls below it. Zero disables the rule.
	MinCacheHitRate float64 `yaml:"min_cache_hit_rate"`
}

// TemplateConfig describes the deployment to monitor.
type TemplateConfig struct {
	Service        string        `yaml:"service"`
	Environment    string        `yaml:"environment"`
	Target         string        `yaml:"target"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
	Thresholds     Thresholds    `yaml:"thresholds"`
}

func (c *TemplateConfig) target() (*url.URL, error) {
	if c.Service == "" {
		return nil, errors.New("service is required")
	}
	u, err := url.Parse(c.Target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("target %q must be an absolute http(s) URL", c.Target)
	}
	return u, nil
}

func (c *TemplateConfig) interval() time.Duration {
	if c.ScrapeInterval <= 0 {
		return 15 * time.Second
	}
	return c.ScrapeInterval
}

// promDuration formats d the way Prometheus parses durations.
func promDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}

type staticConfig struct {
	Targets []string          `yaml:"targets"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

type scrapeConfig struct {
	JobName       string         `yaml:"job_name"`
	MetricsPath   string         `yaml:"metrics_path"`
	Scheme        string         `yaml:"scheme"`
	StaticConfigs []staticConfig `yaml:"static_configs"`
}

type prometheusConfig struct {
	Global struct {
		ScrapeInterval     string `yaml:"scrape_interval"`
		EvaluationInterval string `yaml:"evaluation_interval"`
	} `yaml:"global"`
	RuleFiles     []string       `yaml:"rule_files"`
	ScrapeConfigs []scrapeConfig `yaml:"scrape_configs"`
}

// PrometheusConfig renders a Prometheus server configuration scraping the target.
func PrometheusConfig(c TemplateConfig) ([]byte, error) {
	u, err := c.target()
	if err != nil {
		return nil, err
	}

	var pc prometheusConfig
	pc.Global.ScrapeInterval = promDuration(c.interval())
	pc.Global.EvaluationInterval = promDuration(c.interval())
	pc.RuleFiles = []string{AlertsFile}
	pc.ScrapeConfigs = []scrapeConfig{{
		JobName:     c.Service,
		MetricsPath: "/metrics",
		Scheme:      u.Scheme,
		StaticConfigs: []staticConfig{{
			Targets: []string{u.Host},
			Labels:  map[string]string{"environment": c.Environment, "service": c.Service},
		}},
	}}
	return marshal(pc)
}

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type ruleGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

// AlertRules renders Prometheus alert rules for availability, error rate, latency and the
// search cache hit rate.
func AlertRules(c TemplateConfig) ([]byte, error) {
	if _, err := c.target(); err != nil {
		return nil, err
	}
	th := c.Thresholds
	if th.ErrorRate <= 0 {
		th.ErrorRate = 0.05
	}
	if th.LatencyP95 <= 0 {
		th.LatencyP95 = 2 * time.Second
	}

	labels := func(severity string) map[string]string {
		return map[string]string{"severity": severity, "service": c.Service, "environment": c.Environment}
	}
	rules := []alertRule{
		{
			Alert:       "VanaDown",
			Expr:        fmt.Sprintf(`up{job=%q} == 0`, c.Service),
			For:         "1m",
			Labels:      labels("critical"),
			Annotations: map[string]string{"summary": c.Service + " is not reachable"},
		},
		{
			Alert: "VanaHighErrorRate",
			Expr: fmt.Sprintf(`sum(rate(vana_http_requests_total{job=%q,status=~"5.."}[5m])) / sum(rate(vana_http_requests_total{job=%q}[5m])) > %s`,
				c.Service, c.Service, strconv.FormatFloat(th.ErrorRate, 'f', -1, 64)),
			For:         "5m",
			Labels:      labels("warning"),
			Annotations: map[string]string{"summary": fmt.Sprintf("%s error rate above %.1f%%", c.Service, th.ErrorRate*100)},
		},
		{
			Alert: "VanaHighLatency",
			Expr: fmt.Sprintf(`histogram_quantile(0.95, sum by (le) (rate(vana_http_request_duration_seconds_bucket{job=%q}[5m]))) > %s`,
				c.Service, strconv.FormatFloat(th.LatencyP95.Seconds(), 'f', -1, 64)),
			For:         "10m",
			Labels:      labels("warning"),
			Annotations: map[string]string{"summary": fmt.Sprintf("%s p95 latency above %s", c.Service, th.LatencyP95)},
		},
	}
	if th.MinCacheHitRate > 0 {
		rules = append(rules, alertRule{
			Alert: "VanaLowCacheHitRate",
			Expr: fmt.Sprintf(`rate(vana_cache_hits_total{job=%q,cache="search"}[15m]) / (rate(vana_cache_hits_total{job=%q,cache="search"}[15m]) + rate(vana_cache_misses_total{job=%q,cache="search"}[15m])) < %s`,
				c.Service, c.Service, c.Service, strconv.FormatFloat(th.MinCacheHitRate, 'f', -1, 64)),
			For:         "30m",
			Labels:      labels("info"),
			Annotations: map[string]string{"summary": c.Service + " search cache hit rate is low"},
		})
	}
	return marshal(struct {
		Groups []ruleGroup `yaml:"groups"`
	}{Groups: []ruleGroup{{Name: c.Service, Rules: rules}}})
}

type datadogInstance struct {
	OpenMetricsEndpoint string   `yaml:"openmetrics_endpoint"`
	Namespace           string   `yaml:"namespace"`
	Metrics             []string `yaml:"metrics"`
	Tags                []string `yaml:"tags"`
	MinCollectionInt    int      `yaml:"min_collection_interval"`
}

// DatadogConfig renders a Datadog agent OpenMetrics check collecting the VANA metrics.
func DatadogConfig(c TemplateConfig) ([]byte, error) {
	u, err := c.target()
	if err != nil {
		return nil, err
	}
	endpoint := u.JoinPath("metrics")
	return marshal(struct {
		InitConfig map[string]any    `yaml:"init_config"`
		Instances  []datadogInstance `yaml:"instances"`
	}{
		InitConfig: map[string]any{},
		Instances: []datadogInstance{{
			OpenMetricsEndpoint: endpoint.String(),
			Namespace:           namespace,
			Metrics:             []string{"vana_.*"},
			Tags:                []string{"service:" + c.Service, "env:" + c.Environment},
			MinCollectionInt:    int(c.interval().Seconds()),
		}},
	})
}

func marshal(v any) ([]byte, error) {
	buf := pool.Buffer.Get()
	defer pool.Buffer.Put(buf)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Render writes every template into dir and returns the written paths.
func Render(dir string, c TemplateConfig) ([]string, error) {
	renderers := []struct {
		name   string
		render func(TemplateConfig) ([]byte, error)
	}{
		{PrometheusFile, PrometheusConfig},
		{AlertsFile, AlertRules},
		{DatadogFile, DatadogConfig},
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(renderers))
	for _, r := range renderers {
		data, err := r.render(c)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", r.name, err)
		}
		p := filepath.Join(dir, r.name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
