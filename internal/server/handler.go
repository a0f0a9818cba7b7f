package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"agentlog-shell/internal/config"
	"agentlog-shell/internal/metrics"
	"agentlog-shell/internal/model"
	"agentlog-shell/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

// LogPath is the only route the listener answers with anything but 404.
const LogPath = "/log"

var (
	errBodyTooLarge = errors.New("body exceeds MAX_BODY_SIZE")
	errNotObject    = errors.New("payload is not a JSON object")
	receivedBody    = mustMarshal(model.Received{Status: "received"})
)

// Publisher receives formatted banners. worker.Dispatcher implements it.
type Publisher interface {
	Publish(line string) bool
}

type Handler struct {
	cfg     config.Config
	metrics *metrics.Metrics
	pub     Publisher
	now     func() time.Time
}

func NewHandler(cfg config.Config, m *metrics.Metrics, pub Publisher) *Handler {
	return &Handler{
		cfg:     cfg,
		metrics: m,
		pub:     pub,
		now:     time.Now,
	}
}

// ServeHTTP
//
// Handles every request reaching the log listener.
//
//  1. anything but POST /log → 404 "Not Found"
//  2. body read (bounded, gzip aware) → failure drops the request
//  3. invalid UTF-8 → drop
//  4. blank body → 200 "OK" (liveness probe, no UI event)
//  5. {agent, content} JSON → anything else drops the request
//  6. banner → Dispatcher, then 200 {"status":"received"}
//
// A dropped request gets no status line at all: the connection is closed
// through http.ErrAbortHandler. Senders treat silence as "ignored".
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// RequestURI is the raw target: "/log?x=1" and "/%6Cog" are not the route.
	if r.Method != http.MethodPost || r.RequestURI != LogPath {
		h.metrics.LogRequests.WithLabelValues(metrics.OutcomeNotFound).Inc()
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}

	text, err := h.readBody(w, r)
	if err != nil {
		h.drop(r, metrics.OutcomeDroppedRead, err)
	}

	if !utf8.ValidString(text) {
		h.drop(r, metrics.OutcomeDroppedUTF8, nil)
	}

	if strings.TrimSpace(text) == "" {
		h.metrics.LogRequests.WithLabelValues(metrics.OutcomeProbe).Inc()
		writeText(w, http.StatusOK, "OK")
		return
	}

	ev, err := decodeEvent(text)
	if err != nil {
		h.drop(r, metrics.OutcomeDroppedJSON, err)
	}

	h.pub.Publish(FormatBanner(h.now(), ev))

	h.metrics.LogRequests.WithLabelValues(metrics.OutcomeReceived).Inc()
	zlog.Info().
		Str("agent", ev.AgentName()).
		Int("content_len", len(ev.Content)).
		Str("sender", senderAddr(r)).
		Msg("log event received")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(receivedBody)
}

// readBody returns the request body as text. MAX_BODY_SIZE bounds both the
// bytes on the wire and, for gzip bodies, the decompressed size.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	limit := h.cfg.MaxBodySize

	var src io.Reader = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip") {
		zr, err := pool.GetGzipReader(src)
		if err != nil {
			return "", errors.Wrap(err, "gzip header")
		}
		defer pool.PutGzipReader(zr)
		src = zr
	}

	buf := pool.GetBody()
	defer pool.PutBody(buf, limit*2)

	n, err := io.Copy(buf, io.LimitReader(src, limit+1))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	if n > limit {
		return "", errBodyTooLarge
	}
	return buf.String(), nil
}

// drop abandons the request without writing a response.
func (h *Handler) drop(r *http.Request, outcome string, err error) {
	h.metrics.LogRequests.WithLabelValues(outcome).Inc()
	zlog.Debug().Err(err).Str("outcome", outcome).Str("sender", senderAddr(r)).Msg("log request dropped")
	panic(http.ErrAbortHandler)
}

// decodeEvent accepts a JSON object whose agent and content fields are
// strings or absent. Unknown fields are ignored. An explicit null, a
// non-string value or a lone UTF-16 surrogate escape rejects the payload.
func decodeEvent(text string) (model.LogEvent, error) {
	var ev model.LogEvent
	b := bytes.TrimSpace([]byte(text))
	if len(b) == 0 || b[0] != '{' {
		return ev, errNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return ev, errors.Wrap(err, "decode log event")
	}

	var err error
	if ev.Agent, err = stringField(fields, "agent"); err != nil {
		return model.LogEvent{}, err
	}
	if ev.Content, err = stringField(fields, "content"); err != nil {
		return model.LogEvent{}, err
	}
	return ev, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", errors.Errorf("field %q is not a string", key)
	}
	if hasLoneSurrogate(raw) {
		return "", errors.Errorf("field %q has an unpaired surrogate escape", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.Wrapf(err, "decode field %q", key)
	}
	return s, nil
}

// hasLoneSurrogate scans a JSON string literal for a \uD800-\uDFFF escape
// that is not a high surrogate immediately followed by a low one.
func hasLoneSurrogate(lit []byte) bool {
	for i := 0; i < len(lit); i++ {
		if lit[i] != '\\' {
			continue
		}
		if i+1 < len(lit) && lit[i+1] != 'u' {
			i++ // skip the escaped byte, e.g. a quote or backslash
			continue
		}
		r, ok := hexEscape(lit, i)
		if !ok {
			continue
		}
		switch {
		case r >= 0xDC00 && r <= 0xDFFF:
			return true
		case r >= 0xD800 && r <= 0xDBFF:
			lo, ok := hexEscape(lit, i+6)
			if !ok || lo < 0xDC00 || lo > 0xDFFF {
				return true
			}
			i += 11
		default:
			i += 5
		}
	}
	return false
}

// hexEscape decodes the \uXXXX escape starting at lit[i].
func hexEscape(lit []byte, i int) (rune, bool) {
	if i+6 > len(lit) || lit[i] != '\\' || lit[i+1] != 'u' {
		return 0, false
	}
	var r rune
	for _, c := range lit[i+2 : i+6] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			return 0, false
		}
	}
	return r, true
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
