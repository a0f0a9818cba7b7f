// Package bridge connects the desktop UI to the shell over a loopback
// websocket: events flow out, command invocations flow in.
package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

// WSPath is where the UI connects.
const WSPath = "/ws"

// ErrNoSession is returned by Emit while no UI is attached.
var ErrNoSession = errors.New("no UI session attached")

// Commands is the surface the UI may invoke. app.App implements it.
type Commands interface {
	StartLogServer() error
	CallService(ctx context.Context, city string, dateOffset int) (string, error)
}

type session struct {
	id   string
	conn *websocket.Conn
}

// Hub holds the single attached UI session. A new connection replaces the
// previous one; events are never fanned out to several sessions.
type Hub struct {
	mu   sync.Mutex
	sess *session
	seq  atomic.Uint64

	writeTimeout time.Duration
}

func NewHub() *Hub {
	return &Hub{writeTimeout: 500 * time.Millisecond}
}

// Attached reports whether a UI session is currently connected.
func (h *Hub) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess != nil
}

// Emit sends a named event to the attached UI. It fails fast with
// ErrNoSession when nobody is listening, returns the encoding error for a
// payload that cannot be marshalled, and gives up after a short write
// timeout otherwise.
func (h *Hub) Emit(event string, payload any) error {
	h.mu.Lock()
	s := h.sess
	h.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return h.write(s, Message{
		ID:      fmt.Sprintf("evt_%d", h.seq.Add(1)),
		Type:    TypeEvent,
		Op:      event,
		Payload: raw,
	})
}

// Handler serves the websocket endpoint, dispatching requests to cmds.
func (h *Hub) Handler(cmds Commands) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, func(w http.ResponseWriter, r *http.Request) {
		h.serveWS(w, r, cmds)
	})
	return mux
}

// Start binds addr and serves the bridge in the background.
func (h *Hub) Start(addr string, cmds Commands) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "bind UI bridge on %s", addr)
	}
	srv := &http.Server{
		Handler:           h.Handler(cmds),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info().Str("addr", ln.Addr().String()).Msg("UI bridge listening")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("UI bridge stopped")
		}
	}()
	return srv, ln.Addr(), nil
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, cmds Commands) {
	// Browser origins are limited to local pages and the webview; native
	// clients send no Origin and are accepted.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", "tauri.localhost", "wails.localhost"},
	})
	if err != nil {
		return
	}

	s := &session{id: uuid.NewString(), conn: conn}
	h.attach(s)
	defer h.detach(s)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var req Message
		if err := json.Unmarshal(data, &req); err != nil || req.Type != TypeRequest {
			_ = h.write(s, Message{
				ID:    req.ID,
				Type:  TypeResponse,
				Op:    req.Op,
				Error: &ErrPayload{Code: CodeBadRequest, Message: "expected a request envelope"},
			})
			continue
		}

		// each request on its own goroutine: a slow backend call must not
		// stall event delivery or other requests
		go h.handle(ctx, s, cmds, req)
	}
}

func (h *Hub) handle(ctx context.Context, s *session, cmds Commands, req Message) {
	res := Message{ID: req.ID, Type: TypeResponse, Op: req.Op}

	switch req.Op {
	case OpStartLogServer:
		if err := cmds.StartLogServer(); err != nil {
			res.Error = &ErrPayload{Code: CodeCallFailed, Message: err.Error()}
		}

	case OpCallService:
		var args CallServiceArgs
		if err := json.Unmarshal(req.Payload, &args); err != nil {
			res.Error = &ErrPayload{Code: CodeBadRequest, Message: err.Error()}
			break
		}
		out, err := cmds.CallService(ctx, args.City, args.DateOffset)
		if err != nil {
			res.Error = &ErrPayload{Code: CodeCallFailed, Message: err.Error()}
			break
		}
		if res.Payload, err = encodePayload(out); err != nil {
			res.Error = &ErrPayload{Code: CodeCallFailed, Message: err.Error()}
		}

	default:
		res.Error = &ErrPayload{Code: CodeUnknownOp, Message: fmt.Sprintf("unknown op %q", req.Op)}
	}

	if err := h.write(s, res); err != nil {
		zlog.Debug().Err(err).Str("session", s.id).Str("op", req.Op).Msg("UI response not delivered")
	}
}

func (h *Hub) attach(s *session) {
	h.mu.Lock()
	prev := h.sess
	h.sess = s
	h.mu.Unlock()

	if prev != nil {
		// Close waits for the peer's close frame; keep it off this goroutine.
		go func() { _ = prev.conn.Close(websocket.StatusNormalClosure, "replaced by a newer UI session") }()
		zlog.Info().Str("session", prev.id).Msg("UI session replaced")
	}
	zlog.Info().Str("session", s.id).Msg("UI session attached")
}

func (h *Hub) detach(s *session) {
	h.mu.Lock()
	if h.sess == s {
		h.sess = nil
	}
	h.mu.Unlock()
	_ = s.conn.CloseNow()
}

func (h *Hub) write(s *session, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode UI message")
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, b)
}
