package devtools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Typed wrappers for the protocol commands the capture engine and the
// navigation controller actually use.

// EnablePageEvents turns on page lifecycle and script-execution event
// streams for this channel.
func (ch *Channel) EnablePageEvents(ctx context.Context) error {
	if _, err := ch.Send(ctx, "Page.enable", nil); err != nil {
		return err
	}
	_, err := ch.Send(ctx, "Runtime.enable", nil)
	return err
}

// SetBackgroundColor overrides the default page background. An opaque
// background avoids transparent-frame artifacts in captures.
func (ch *Channel) SetBackgroundColor(ctx context.Context, r, g, b int) error {
	_, err := ch.Send(ctx, "Emulation.setDefaultBackgroundColorOverride", map[string]any{
		"color": map[string]int{"r": r, "g": g, "b": b, "a": 255},
	})
	return err
}

// Location is the page's current URL and document ready state.
type Location struct {
	URL        string `json:"url"`
	ReadyState string `json:"ready"`
}

// CurrentLocation evaluates a small expression on the page to read
// where it actually is and whether the document finished loading.
func (ch *Channel) CurrentLocation(ctx context.Context) (Location, error) {
	result, err := ch.evaluate(ctx,
		`JSON.stringify({url: window.location.href, ready: document.readyState})`)
	if err != nil {
		return Location{}, err
	}
	var loc Location
	if err := json.Unmarshal([]byte(result), &loc); err != nil {
		return Location{}, fmt.Errorf("failed to parse location result: %w", err)
	}
	return loc, nil
}

// WindowScreenX reads the window's x position on the combined desktop.
// Used by the runtime-detection binder to order windows left to right.
func (ch *Channel) WindowScreenX(ctx context.Context) (int, error) {
	result, err := ch.Send(ctx, "Runtime.evaluate", map[string]any{
		"expression":    "window.screenX",
		"returnByValue": true,
	})
	if err != nil {
		return 0, err
	}
	var reply struct {
		Result struct {
			Value float64 `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &reply); err != nil {
		return 0, fmt.Errorf("failed to parse screenX result: %w", err)
	}
	return int(reply.Result.Value), nil
}

// CaptureScreenshot requests a full-surface JPEG frame at the given
// quality (1-100), including content beyond the viewport, and returns
// the decoded image bytes.
func (ch *Channel) CaptureScreenshot(ctx context.Context, quality int) ([]byte, error) {
	result, err := ch.Send(ctx, "Page.captureScreenshot", map[string]any{
		"format":                "jpeg",
		"quality":               quality,
		"captureBeyondViewport": true,
	})
	if err != nil {
		return nil, err
	}
	var reply struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse screenshot result: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(reply.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot payload: %w", err)
	}
	return data, nil
}

// Navigate points the page at a new URL.
func (ch *Channel) Navigate(ctx context.Context, url string) error {
	_, err := ch.Send(ctx, "Page.navigate", map[string]any{"url": url})
	return err
}

// ClearCache wipes the browser cache.
func (ch *Channel) ClearCache(ctx context.Context) error {
	if _, err := ch.Send(ctx, "Network.enable", nil); err != nil {
		return err
	}
	_, err := ch.Send(ctx, "Network.clearBrowserCache", nil)
	return err
}

// ClearCookies wipes all cookies.
func (ch *Channel) ClearCookies(ctx context.Context) error {
	_, err := ch.Send(ctx, "Network.clearBrowserCookies", nil)
	return err
}

func (ch *Channel) evaluate(ctx context.Context, expression string) (string, error) {
	result, err := ch.Send(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return "", err
	}
	var reply struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &reply); err != nil {
		return "", fmt.Errorf("failed to parse evaluate result: %w", err)
	}
	return reply.Result.Value, nil
}
