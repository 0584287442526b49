package devtools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// fakeBrowser runs a WebSocket endpoint that answers protocol frames
// through the supplied handler. Returning nil skips the reply entirely.
func fakeBrowser(t *testing.T, handle func(req map[string]any) map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if reply := handle(req); reply != nil {
				if err := conn.WriteJSON(reply); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echoResult(result map[string]any) func(req map[string]any) map[string]any {
	return func(req map[string]any) map[string]any {
		return map[string]any{"id": req["id"], "result": result}
	}
}

func TestChannel_SendCorrelatesByID(t *testing.T) {
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		if req["method"] != "Page.navigate" {
			t.Errorf("unexpected method %v", req["method"])
		}
		return map[string]any{"id": req["id"], "result": map[string]any{"frameId": "f1"}}
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()

	result, err := ch.Send(context.Background(), "Page.navigate", map[string]any{"url": "http://kiosk/page"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	var parsed struct {
		FrameID string `json:"frameId"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil || parsed.FrameID != "f1" {
		t.Errorf("unexpected result %s (err %v)", result, err)
	}
}

func TestChannel_UnmatchedReplyIgnored(t *testing.T) {
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		// Send an unsolicited reply first, then the real one.
		return map[string]any{"id": req["id"], "result": map[string]any{}}
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()

	// Push an event frame and a reply with an id nobody waits on. The
	// read loop must drop both without breaking later correlation.
	ch.writeMu.Lock()
	_ = ch.conn.WriteJSON(map[string]any{"method": "Page.loadEventFired", "params": map[string]any{}})
	ch.writeMu.Unlock()

	if _, err := ch.Send(context.Background(), "Page.enable", nil); err != nil {
		t.Fatalf("Send after stray frames failed: %v", err)
	}
}

func TestChannel_ReplyTimeout(t *testing.T) {
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		return nil // never reply
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()
	ch.replyTimeout = 50 * time.Millisecond

	_, err = ch.Send(context.Background(), "Page.enable", nil)
	if !errors.Is(err, ErrChannelTimeout) {
		t.Errorf("expected ErrChannelTimeout, got %v", err)
	}
}

func TestChannel_CommandError(t *testing.T) {
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		return map[string]any{"id": req["id"], "error": map[string]any{"code": -32000, "message": "no such frame"}}
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()

	_, err = ch.Send(context.Background(), "Page.navigate", map[string]any{"url": "x"})
	if err == nil || !strings.Contains(err.Error(), "no such frame") {
		t.Errorf("expected command error, got %v", err)
	}
}

func TestChannel_CloseIdempotent(t *testing.T) {
	wsURL := fakeBrowser(t, echoResult(map[string]any{}))

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	ch.Close()
	ch.Close() // must not panic

	select {
	case <-ch.Done():
	default:
		t.Error("Done must be closed after Close")
	}
}

func TestOpenChannel_NoListener(t *testing.T) {
	_, err := OpenChannel(context.Background(), "ws://127.0.0.1:1/devtools/page/x")
	if !errors.Is(err, ErrChannelTimeout) {
		t.Errorf("expected ErrChannelTimeout, got %v", err)
	}
}

func TestChannel_CaptureScreenshot(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		params, _ := req["params"].(map[string]any)
		if params["format"] != "jpeg" {
			t.Errorf("expected jpeg format, got %v", params["format"])
		}
		if params["captureBeyondViewport"] != true {
			t.Error("captureBeyondViewport must be enabled")
		}
		return map[string]any{"id": req["id"], "result": map[string]any{
			"data": base64.StdEncoding.EncodeToString(payload),
		}}
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()

	data, err := ch.CaptureScreenshot(context.Background(), 70)
	if err != nil {
		t.Fatalf("CaptureScreenshot failed: %v", err)
	}
	if len(data) != len(payload) || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("decoded payload mismatch: %v", data)
	}
}

func TestChannel_EnablePageEvents(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		mu.Lock()
		methods = append(methods, req["method"].(string))
		mu.Unlock()
		return map[string]any{"id": req["id"], "result": map[string]any{}}
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()

	if err := ch.EnablePageEvents(context.Background()); err != nil {
		t.Fatalf("EnablePageEvents failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(methods) != 2 || methods[0] != "Page.enable" || methods[1] != "Runtime.enable" {
		t.Errorf("expected Page.enable then Runtime.enable, got %v", methods)
	}
}

func TestChannel_CurrentLocation(t *testing.T) {
	wsURL := fakeBrowser(t, func(req map[string]any) map[string]any {
		return map[string]any{"id": req["id"], "result": map[string]any{
			"result": map[string]any{"value": `{"url":"http://kiosk/page","ready":"complete"}`},
		}}
	})

	ch, err := OpenChannel(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	defer ch.Close()

	loc, err := ch.CurrentLocation(context.Background())
	if err != nil {
		t.Fatalf("CurrentLocation failed: %v", err)
	}
	if loc.URL != "http://kiosk/page" || loc.ReadyState != "complete" {
		t.Errorf("unexpected location %+v", loc)
	}
}
