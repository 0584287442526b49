package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"

	"kioskbox/internal/binder"
	"kioskbox/internal/controller"
	"kioskbox/internal/journal"
	"kioskbox/internal/state"
	"kioskbox/internal/system"
)

func testStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func testJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func testBindings() *binder.Registry {
	strategy := binder.NewFixedStrategy(9222, 9223, "HDMI-1", "HDMI-2")
	return binder.NewRegistry(strategy, clock.New())
}

func screensApp(t *testing.T) (*fiber.App, *state.Store) {
	t.Helper()
	store := testStore(t)
	controllers := controller.NewRegistry([]string{"1", "2"}, testBindings(), nil, testJournal(t))
	h := NewScreensHandler(store, controllers, testBindings(), nil, slog.Default())

	app := fiber.New()
	app.Post("/screens/:id/url", h.SetURL)
	app.Get("/screens", h.List)
	app.Post("/screens/:id/clear", h.Clear)
	return app, store
}

func TestSetURL_PersistsAndResponds(t *testing.T) {
	app, store := screensApp(t)

	body := []byte(`{"url":"https://dash.example.com/board"}`)
	req := httptest.NewRequest("POST", "/screens/1/url", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := store.URLFor("1"); got != "https://dash.example.com/board" {
		t.Errorf("stored url = %q", got)
	}
}

func TestSetURL_UnknownScreen(t *testing.T) {
	app, _ := screensApp(t)

	body := []byte(`{"url":"https://example.com"}`)
	req := httptest.NewRequest("POST", "/screens/7/url", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestSetURL_RejectsRelativeURL(t *testing.T) {
	app, _ := screensApp(t)

	for _, body := range []string{`{"url":"/just/a/path"}`, `{"url":""}`, `not json`} {
		req := httptest.NewRequest("POST", "/screens/1/url", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestListScreens_ReportsBothScreens(t *testing.T) {
	app, store := screensApp(t)
	if err := store.SetURL("2", "https://menu.example.com"); err != nil {
		t.Fatalf("SetURL: %v", err)
	}

	resp, _ := app.Test(httptest.NewRequest("GET", "/screens", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var got struct {
		Screens []struct {
			ScreenID   string `json:"screen_id"`
			DesiredURL string `json:"desired_url"`
			Channel    string `json:"channel"`
		} `json:"screens"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(got.Screens) != 2 {
		t.Fatalf("screens = %d, want 2", len(got.Screens))
	}
	if got.Screens[1].DesiredURL != "https://menu.example.com" {
		t.Errorf("screen 2 url = %q", got.Screens[1].DesiredURL)
	}
	for _, s := range got.Screens {
		if s.Channel != "disconnected" {
			t.Errorf("screen %s channel = %q before any connect", s.ScreenID, s.Channel)
		}
	}
}

func TestClear_RequiresOpenChannel(t *testing.T) {
	app, _ := screensApp(t)

	resp, _ := app.Test(httptest.NewRequest("POST", "/screens/1/clear", nil))
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503 while disconnected, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/screens/9/clear", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404 for unknown screen, got %d", resp.StatusCode)
	}
}

func TestScreenshot_UnknownScreen(t *testing.T) {
	h := NewScreenshotHandler(nil, 70)
	app := fiber.New()
	app.Get("/screenshot/:id", h.Handle)

	resp, _ := app.Test(httptest.NewRequest("GET", "/screenshot/3", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestScreenshot_BadQuality(t *testing.T) {
	h := NewScreenshotHandler(nil, 70)
	app := fiber.New()
	app.Get("/screenshot/:id", h.Handle)

	resp, _ := app.Test(httptest.NewRequest("GET", "/screenshot/1?quality=high", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(testBindings()).Handle)

	resp, _ := app.Test(httptest.NewRequest("GET", "/health", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestSystemPatch_BadScriptName(t *testing.T) {
	h := NewSystemHandler(
		system.NewPatchRunner(t.TempDir(), slog.Default()),
		system.NewRebootGuard(0, slog.Default()),
		system.NewCursorToggle(":0", slog.Default()),
		testJournal(t),
	)
	app := fiber.New()
	app.Post("/system/patch", h.Patch)

	body := []byte(`{"script":"../../etc/cron.sh"}`)
	req := httptest.NewRequest("POST", "/system/patch", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSystemReboot_GuardedEarly(t *testing.T) {
	h := NewSystemHandler(
		system.NewPatchRunner(t.TempDir(), slog.Default()),
		system.NewRebootGuard(2*time.Minute, slog.Default()),
		system.NewCursorToggle(":0", slog.Default()),
		testJournal(t),
	)
	app := fiber.New()
	app.Post("/system/reboot", h.Reboot)

	resp, _ := app.Test(httptest.NewRequest("POST", "/system/reboot", nil))
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("Expected 409 inside guard window, got %d", resp.StatusCode)
	}
}

func TestSystemCursor_RequiresVisibleField(t *testing.T) {
	h := NewSystemHandler(
		system.NewPatchRunner(t.TempDir(), slog.Default()),
		system.NewRebootGuard(0, slog.Default()),
		system.NewCursorToggle(":0", slog.Default()),
		testJournal(t),
	)
	app := fiber.New()
	app.Post("/system/cursor", h.Cursor)

	req := httptest.NewRequest("POST", "/system/cursor", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}
