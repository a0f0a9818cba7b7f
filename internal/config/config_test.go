package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.LogAddr)
	assert.Equal(t, "http://localhost:8888/generate", cfg.BackendURL)
	assert.Equal(t, DefaultUIAddr, cfg.UIAddr)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, int64(1<<20), cfg.MaxBodySize)
	assert.True(t, cfg.EchoBanner)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"LOG_ADDR":      "127.0.0.1:19999",
		"BACKEND_URL":   "http://127.0.0.1:18888/generate",
		"METRICS_ADDR":  "[::1]:9100",
		"MAX_BODY_SIZE": "4096",
		"CHANNEL_SIZE":  "8",
		"ECHO_BANNER":   "false",
		"LOG_SAMPLE_N":  "10",
		"READ_TIMEOUT":  "2s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:19999", cfg.LogAddr)
	assert.Equal(t, "http://127.0.0.1:18888/generate", cfg.BackendURL)
	assert.Equal(t, "[::1]:9100", cfg.MetricsAddr)
	assert.Equal(t, int64(4096), cfg.MaxBodySize)
	assert.Equal(t, 8, cfg.ChannelSize)
	assert.False(t, cfg.EchoBanner)
	assert.Equal(t, uint32(10), cfg.LogSampleN)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
}

func TestFromEnvRejectsNonLoopback(t *testing.T) {
	for _, key := range []string{"LOG_ADDR", "UI_ADDR", "METRICS_ADDR"} {
		_, err := FromEnv(envMap(map[string]string{key: "0.0.0.0:9999"}))
		var fe *FieldError
		require.ErrorAs(t, err, &fe, key)
		assert.Equal(t, key, fe.Key)
		assert.ErrorIs(t, err, errNotLoopback)
	}
}

func TestFromEnvMalformed(t *testing.T) {
	cases := map[string]string{
		"MAX_BODY_SIZE": "big",
		"CHANNEL_SIZE":  "0",
		"ECHO_BANNER":   "maybe",
		"READ_TIMEOUT":  "soon",
		"LOG_ADDR":      "no-port",
		"BACKEND_URL":   "not a url",
	}
	for key, val := range cases {
		_, err := FromEnv(envMap(map[string]string{key: val}))
		assert.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestLocalhostIsLoopback(t *testing.T) {
	assert.NoError(t, requireLoopback("UI_ADDR", "localhost:0"))
}
