package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultDatadogURL is the public Datadog API site
const DefaultDatadogURL = "https://api.datadoghq.com"

// Datadog posts counts to the v1 series endpoint
type Datadog struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type ddSeries struct {
	Series []ddMetric `json:"series"`
}

type ddMetric struct {
	Metric string       `json:"metric"`
	Type   string       `json:"type"`
	Points [][2]float64 `json:"points"`
	Tags   []string     `json:"tags,omitempty"`
}

// NewDatadog creates a Datadog sink. An empty baseURL selects DefaultDatadogURL
// and a nil client selects http.DefaultClient.
func NewDatadog(apiKey, baseURL string, client *http.Client) (*Datadog, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("datadog api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultDatadogURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Datadog{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

// RecordCount implements Sink
func (d *Datadog) RecordCount(ctx context.Context, name string, tags []string, count int, ts time.Time) error {
	body, err := json.Marshal(ddSeries{Series: []ddMetric{{
		Metric: name,
		Type:   "count",
		Points: [][2]float64{{float64(ts.Unix()), float64(count)}},
		Tags:   tags,
	}}})
	if err != nil {
		return fmt.Errorf("encoding series: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/v1/series", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting series: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("datadog returned %s", resp.Status)
	}
	return nil
}
