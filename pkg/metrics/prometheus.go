package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name
const PushJob = "hackquest"

// Prometheus counts into a private registry and, when a Pushgateway URL is
// configured, pushes the registry after every count.
type Prometheus struct {
	registry *prometheus.Registry
	stages   *prometheus.CounterVec
	pusher   *push.Pusher
}

// NewPrometheus creates a Prometheus sink. An empty pushgatewayURL only counts.
func NewPrometheus(pushgatewayURL string) (*Prometheus, error) {
	stages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hackquest",
			Name:      "stage_completed_total",
			Help:      "Quests completed, by quest tag",
		},
		[]string{"stage"},
	)

	registry := prometheus.NewRegistry()
	if err := registry.Register(stages); err != nil {
		return nil, fmt.Errorf("registering counter: %w", err)
	}

	p := &Prometheus{registry: registry, stages: stages}
	if pushgatewayURL != "" {
		p.pusher = push.New(pushgatewayURL, PushJob).Gatherer(registry)
	}
	return p, nil
}

// Registry exposes the sink's registry for scraping or inspection
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// RecordCount implements Sink. Only StageCompleted is known; the value of its
// "stage:" tag becomes the label.
func (p *Prometheus) RecordCount(ctx context.Context, name string, tags []string, count int, ts time.Time) error {
	if name != StageCompleted {
		return fmt.Errorf("unknown metric %q", name)
	}
	p.stages.WithLabelValues(tagValue(tags, "stage")).Add(float64(count))

	if p.pusher == nil {
		return nil
	}
	if err := p.pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}

func tagValue(tags []string, key string) string {
	prefix := key + ":"
	for _, t := range tags {
		if strings.HasPrefix(t, prefix) {
			return strings.TrimPrefix(t, prefix)
		}
	}
	return ""
}
