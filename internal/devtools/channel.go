package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	openTimeout  = 3 * time.Second
	replyTimeout = 3 * time.Second
)

// message is the JSON frame exchanged over a control channel. Requests
// carry a numeric id echoed in the correlated reply; frames without an
// id are protocol events.
type message struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params any             `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *commandError   `json:"error,omitempty"`
}

type commandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Channel is a persistent bidirectional control connection to one
// inspectable page. Replies are matched to pending calls by request id;
// replies nobody is waiting for are dropped silently.
type Channel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	nextID  int64
	pending map[int64]chan message
	pendMu  sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	replyTimeout time.Duration
	logger       *slog.Logger
}

// OpenChannel dials the page's control URL. Returns ErrChannelTimeout
// when no open acknowledgment arrives within the handshake deadline.
func OpenChannel(ctx context.Context, wsURL string) (*Channel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: openTimeout}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrChannelTimeout, wsURL, err)
	}

	ch := &Channel{
		conn:         conn,
		pending:      make(map[int64]chan message),
		done:         make(chan struct{}),
		replyTimeout: replyTimeout,
		logger:       slog.With("component", "devtools"),
	}
	go ch.readLoop()
	return ch, nil
}

func (ch *Channel) readLoop() {
	defer ch.Close()
	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			ch.logger.Warn("dropping unparseable channel frame", "error", err)
			continue
		}
		if msg.ID == 0 {
			// Protocol event, not a reply.
			continue
		}

		ch.pendMu.Lock()
		waiter, ok := ch.pending[msg.ID]
		if ok {
			delete(ch.pending, msg.ID)
		}
		ch.pendMu.Unlock()

		if ok {
			waiter <- msg
		}
		// Unmatched replies are ignored by design.
	}
}

// Send issues a command and waits for its correlated reply.
func (ch *Channel) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&ch.nextID, 1)

	waiter := make(chan message, 1)
	ch.pendMu.Lock()
	ch.pending[id] = waiter
	ch.pendMu.Unlock()

	defer func() {
		ch.pendMu.Lock()
		delete(ch.pending, id)
		ch.pendMu.Unlock()
	}()

	frame := message{ID: id, Method: method, Params: params}
	ch.writeMu.Lock()
	err := ch.conn.WriteJSON(frame)
	ch.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", method, err)
	}

	timer := time.NewTimer(ch.replyTimeout)
	defer timer.Stop()

	select {
	case reply := <-waiter:
		if reply.Error != nil {
			return nil, fmt.Errorf("%s failed: %s (code %d)", method, reply.Error.Message, reply.Error.Code)
		}
		return reply.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no reply to %s within %v", ErrChannelTimeout, method, ch.replyTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ch.done:
		return nil, fmt.Errorf("channel closed while waiting for %s reply", method)
	}
}

// Done is closed when the channel is no longer usable, whether closed
// locally or dropped by the browser.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

// Close tears down the connection. Safe to call multiple times.
func (ch *Channel) Close() {
	ch.closeOnce.Do(func() {
		close(ch.done)
		_ = ch.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ch.conn.Close()
	})
}
