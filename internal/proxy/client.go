// Package proxy forwards generation jobs from the UI to the local backend.
package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"agentlog-shell/internal/config"
	"agentlog-shell/internal/metrics"
	"agentlog-shell/internal/model"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client performs the single outbound call to the generation backend.
// It uses the default transport on purpose: no timeout, no retry and no
// redirect policy beyond net/http's own.
type Client struct {
	url     string
	http    *http.Client
	metrics *metrics.Metrics
}

func NewClient(cfg config.Config, m *metrics.Metrics) *Client {
	return &Client{
		url:     cfg.BackendURL,
		http:    &http.Client{},
		metrics: m,
	}
}

// Forward
//
// POSTs {"city": city, "date": dateOffset} to BACKEND_URL and returns
// "Status: <status>\nResponse: <body>". The HTTP status is not judged:
// a 500 is returned the same way as a 200.
//
// Errors:
//   - transport failure (refused, DNS, ctx cancel): "connect to generation backend failed: ..."
//   - body read failure: "read backend response failed: ..."
func (c *Client) Forward(ctx context.Context, city string, dateOffset int) (string, error) {
	payload, err := json.Marshal(model.ProxyRequest{City: city, Date: dateOffset})
	if err != nil {
		return "", errors.Wrap(err, "encode generation request failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build generation request failed")
	}
	req.Header.Set("Content-Type", "application/json")

	zlog.Info().Str("url", c.url).RawJSON("payload", payload).Msg("forwarding to generation backend")

	start := time.Now()
	defer func() { c.metrics.ProxyDuration.Observe(time.Since(start).Seconds()) }()

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ProxyRequests.WithLabelValues(metrics.ProxyTransport).Inc()
		zlog.Warn().Err(err).Str("url", c.url).Msg("generation backend unreachable")
		return "", errors.Wrap(err, "connect to generation backend failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ProxyRequests.WithLabelValues(metrics.ProxyRead).Inc()
		zlog.Warn().Err(err).Int("status", resp.StatusCode).Msg("generation backend response unreadable")
		return "", errors.Wrap(err, "read backend response failed")
	}

	c.metrics.ProxyRequests.WithLabelValues(metrics.ProxyOK).Inc()
	zlog.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("generation backend replied")

	return model.ProxyResult{StatusLine: resp.Status, Body: string(body)}.String(), nil
}
