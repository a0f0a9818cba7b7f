// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"agentlog-shell/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// Called once at startup. Builds the global zerolog logger from config:
//
//  1. Output format:
//     - LOG_PRETTY=true: coloured console lines for a developer terminal
//     - LOG_PRETTY=false: one JSON object per line
//
//  2. Common fields: every line carries "service" and "instance".
//
//  3. Sampling: with LOG_SAMPLE_N > 1 only 1/N debug and info lines are kept.
//     Warn and error are never sampled.
//
// Usage:
//
//	logger.Init(cfg)
//	log.Info().Msg("log server started")
func Init(cfg config.Config) {
	zlog.Logger = New(cfg, os.Stdout)

	// Route the stdlib logger (net/http error log included) through zerolog.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// New builds the logger Init installs, writing to out.
func New(cfg config.Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	w := out
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	if cfg.LogSampleN > 1 {
		return base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}
	return base
}
