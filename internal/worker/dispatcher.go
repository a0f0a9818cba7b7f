// internal/worker/dispatcher.go
package worker

import (
	"context"
	"io"
	"sync"

	"agentlog-shell/internal/config"
	"agentlog-shell/internal/metrics"

	zlog "github.com/rs/zerolog/log"
)

// EventLogLine is the UI event carrying a formatted banner.
const EventLogLine = "log-line"

// Emitter delivers a named event to the UI layer.
type Emitter interface {
	Emit(event string, payload any) error
}

// Dispatcher republishes banners from the log listener to the UI.
//
// Flow:
//   - Publish: called on the HTTP handler goroutine, never blocks. A full
//     queue drops the banner.
//   - emitLoop: a single goroutine that hands each banner to the Emitter
//     in arrival order. Emit failures are counted and forgotten.
//
// The HTTP response to the sender never waits on the UI.
type Dispatcher struct {
	metrics *metrics.Metrics
	emitter Emitter
	echo    io.Writer

	lineCh chan string

	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher builds a dispatcher with a CHANNEL_SIZE queue. When echo is
// non-nil every banner is also written to it (the console copy).
func NewDispatcher(cfg config.Config, m *metrics.Metrics, e Emitter, echo io.Writer) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		metrics: m,
		emitter: e,
		echo:    echo,
		lineCh:  make(chan string, cfg.ChannelSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the emit loop. Extra calls are no-ops.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.emitLoop()
	})
}

// Shutdown stops the loop after emitting whatever is already queued.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(d.cancel)
	d.wg.Wait()
}

// Publish queues line for the UI and reports whether it was accepted.
func (d *Dispatcher) Publish(line string) bool {
	select {
	case <-d.ctx.Done():
		return false
	default:
	}

	select {
	case d.lineCh <- line:
		return true
	default:
		d.metrics.UIEvents.WithLabelValues(metrics.UIQueueFull).Inc()
		zlog.Warn().Int("queue", cap(d.lineCh)).Msg("dispatcher queue full, banner dropped")
		return false
	}
}

func (d *Dispatcher) emitLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			// drain what the handlers already accepted
			for {
				select {
				case line := <-d.lineCh:
					d.emit(line)
				default:
					return
				}
			}

		case line := <-d.lineCh:
			d.emit(line)
		}
	}
}

func (d *Dispatcher) emit(line string) {
	if d.echo != nil {
		_, _ = io.WriteString(d.echo, line+"\n")
	}

	if err := d.emitter.Emit(EventLogLine, line); err != nil {
		d.metrics.UIEvents.WithLabelValues(metrics.UIUndelivered).Inc()
		zlog.Debug().Err(err).Msg("log-line not delivered to UI")
		return
	}
	d.metrics.UIEvents.WithLabelValues(metrics.UIEmitted).Inc()
}
