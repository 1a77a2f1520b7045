package violation

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"ujian-proctor-gateway/internal/data"
)

// ErrChannelClosed means the duplex channel is not open for writes.
var ErrChannelClosed = errors.New("violation channel not open")

// Transport delivers one violation event to the backend.
type Transport interface {
	Deliver(ev data.ViolationEvent) error
}

// OpenChannelTransport writes events over an already-open websocket. Writes
// are fire-and-forget: no acknowledgment is awaited. The first write error
// marks the channel closed; reconnecting swaps in a fresh transport.
type OpenChannelTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
	open bool
}

const channelWriteWait = 5 * time.Second

func NewOpenChannelTransport(conn *websocket.Conn) *OpenChannelTransport {
	return &OpenChannelTransport{conn: conn, open: conn != nil}
}

// IsOpen reports whether the channel can accept writes.
func (t *OpenChannelTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Close marks the channel unusable and closes the underlying connection.
func (t *OpenChannelTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	t.open = false
	t.conn.Close()
}

func (t *OpenChannelTransport) Deliver(ev data.ViolationEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrChannelClosed
	}
	t.conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
	if err := t.conn.WriteJSON(ev); err != nil {
		t.open = false
		return errors.Wrap(err, "write violation over channel")
	}
	return nil
}

// RequestResponseTransport is the one-shot HTTP fallback used when the
// duplex channel is absent or closed.
type RequestResponseTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewRequestResponseTransport(endpoint, apiKey string, client *http.Client) *RequestResponseTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RequestResponseTransport{endpoint: endpoint, apiKey: apiKey, client: client}
}

func (t *RequestResponseTransport) Deliver(ev data.ViolationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal violation")
	}
	req, err := http.NewRequest(http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build violation request")
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("X-API-Key", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post violation")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("violation endpoint returned %s", resp.Status)
	}
	return nil
}

// Reporter routes events to the open channel when available, otherwise to
// the fallback. Delivery is best-effort telemetry: failures are logged and
// never retried, because the detector's local state drives escalation
// independently of successful delivery. Dedup happens in the detector; the
// reporter forwards everything handed to it.
type Reporter struct {
	mu       sync.Mutex
	channel  *OpenChannelTransport
	fallback Transport
}

func NewReporter(channel *OpenChannelTransport, fallback Transport) *Reporter {
	return &Reporter{channel: channel, fallback: fallback}
}

// SetChannel swaps the duplex transport after a reconnect.
func (r *Reporter) SetChannel(channel *OpenChannelTransport) {
	r.mu.Lock()
	r.channel = channel
	r.mu.Unlock()
}

// Report delivers one event without blocking the caller.
func (r *Reporter) Report(ev data.ViolationEvent) {
	r.mu.Lock()
	channel := r.channel
	fallback := r.fallback
	r.mu.Unlock()

	go func() {
		if channel != nil && channel.IsOpen() {
			err := channel.Deliver(ev)
			if err == nil {
				return
			}
			log.Printf("reporter: channel delivery failed for %s: %v", ev.Kind, err)
		}
		if fallback == nil {
			return
		}
		if err := fallback.Deliver(ev); err != nil {
			log.Printf("reporter: fallback delivery failed for %s: %v", ev.Kind, err)
		}
	}()
}

// Close shuts the duplex channel if one is set.
func (r *Reporter) Close() {
	r.mu.Lock()
	channel := r.channel
	r.channel = nil
	r.mu.Unlock()
	if channel != nil {
		channel.Close()
	}
}
