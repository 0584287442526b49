package display

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// Watcher subscribes to RandR screen-change notifications so the rest of
// the system can react to hot-plug events without polling the X server.
type Watcher struct {
	conn   *xgb.Conn
	events chan struct{}
	logger *slog.Logger
}

// NewWatcher connects to the X server on the given display and registers
// for screen, CRTC and output change notifications.
func NewWatcher(display string) (*Watcher, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize RandR: %w", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	err = randr.SelectInputChecked(conn, root,
		randr.NotifyMaskScreenChange|
			randr.NotifyMaskCrtcChange|
			randr.NotifyMaskOutputChange).Check()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to select RandR events: %w", err)
	}

	return &Watcher{
		conn:   conn,
		events: make(chan struct{}, 1),
		logger: slog.With("component", "display-watcher"),
	}, nil
}

// Events delivers one signal per screen-change notification. The channel
// holds a single pending signal; bursts coalesce.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Run blocks reading X events until the connection closes.
func (w *Watcher) Run() {
	for {
		ev, err := w.conn.WaitForEvent()
		if ev == nil && err == nil {
			// Connection closed.
			close(w.events)
			return
		}
		if err != nil {
			w.logger.Warn("error waiting for X event", "error", err)
			continue
		}

		switch ev.(type) {
		case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			w.logger.Info("screen change notification received")
			select {
			case w.events <- struct{}{}:
			default:
			}
		}
	}
}

// Close tears down the X connection, which also terminates Run.
func (w *Watcher) Close() {
	w.conn.Close()
}
