// Package app holds the operations the UI can invoke on the native shell.
package app

import (
	"context"

	"agentlog-shell/internal/guard"

	zlog "github.com/rs/zerolog/log"
)

// Starter binds and serves the log listener. server.LogServer implements it.
type Starter interface {
	Start() error
}

// Forwarder performs the proxy call. proxy.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, city string, dateOffset int) (string, error)
}

// App is the command surface: start the log server, call the backend.
type App struct {
	guard   *guard.Guard
	logSrv  Starter
	forward Forwarder
}

// New wires the commands. g must be the process-wide guard shared by every
// path that may start the listener.
func New(g *guard.Guard, logSrv Starter, fwd Forwarder) *App {
	return &App{
		guard:   g,
		logSrv:  logSrv,
		forward: fwd,
	}
}

// Setup runs at application startup: the listener is started on its own
// goroutine so setup returns immediately.
func (a *App) Setup() {
	go func() { _ = a.StartLogServer() }()
}

// StartLogServer starts the listener unless some caller already did.
// Starting twice is a silent no-op. A bind failure is logged but not
// returned, and the guard stays set: the listener is not retried.
func (a *App) StartLogServer() error {
	if !a.guard.TryStart() {
		zlog.Debug().Msg("log server already started, skipping")
		return nil
	}
	if err := a.logSrv.Start(); err != nil {
		zlog.Error().Err(err).Msg("log server failed to start")
	}
	return nil
}

// CallService forwards the job and returns the backend status and body,
// or the proxy's error.
func (a *App) CallService(ctx context.Context, city string, dateOffset int) (string, error) {
	return a.forward.Forward(ctx, city, dateOffset)
}
