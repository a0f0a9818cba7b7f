package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"agentlog-shell/internal/config"
	"agentlog-shell/internal/metrics"
	"agentlog-shell/internal/model"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) (*Client, *metrics.Metrics) {
	cfg := config.Default()
	cfg.BackendURL = url
	m := metrics.New()
	return NewClient(cfg, m), m
}

func TestForwardSuccess(t *testing.T) {
	var got model.ProxyRequest
	var contentType, method, path string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer backend.Close()

	c, m := newClient(backend.URL + "/generate")
	out, err := c.Forward(context.Background(), "Beijing", 3)
	require.NoError(t, err)

	assert.Equal(t, "Status: 200 OK\nResponse: {\"ok\":true}", out)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/generate", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, model.ProxyRequest{City: "Beijing", Date: 3}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues(metrics.ProxyOK)))
}

func TestForwardWireFormat(t *testing.T) {
	var raw map[string]any
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &raw)
	}))
	defer backend.Close()

	c, _ := newClient(backend.URL)
	_, err := c.Forward(context.Background(), "Tokyo", -1)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"city": "Tokyo", "date": float64(-1)}, raw)
}

func TestForwardNonOKStatusIsStillResult(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	defer backend.Close()

	c, _ := newClient(backend.URL)
	out, err := c.Forward(context.Background(), "Shanghai", 0)
	require.NoError(t, err)
	assert.Equal(t, "Status: 500 Internal Server Error\nResponse: boom", out)
}

func TestForwardUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, m := newClient("http://" + addr + "/generate")
	out, err := c.Forward(context.Background(), "Beijing", 1)

	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "connect to generation backend failed")
	assert.Contains(t, err.Error(), "refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues(metrics.ProxyTransport)))
}

func TestForwardTruncatedBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			return
		}
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")
		_ = buf.Flush()
		_ = conn.Close()
	}))
	defer backend.Close()

	c, m := newClient(backend.URL)
	_, err := c.Forward(context.Background(), "Beijing", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read backend response failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues(metrics.ProxyRead)))
}

func TestForwardCanceledContext(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newClient(backend.URL)
	_, err := c.Forward(ctx, "Beijing", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
