package capture

import "errors"

var (
	// ErrScreenUnavailable means the screen id has no resolved binding
	// or its output is reported disconnected. Surfaced to the caller
	// directly; there is no point falling back to a desktop crop of a
	// screen that isn't there.
	ErrScreenUnavailable = errors.New("screen unavailable")

	// ErrURLMismatch means the page is rendering something other than
	// the operator-expected URL. The debug capture is refused so a
	// screenshot of the wrong content is never returned as truth.
	ErrURLMismatch = errors.New("current URL does not match expected URL")

	// ErrBlankOrErrorPage means the page is empty, about:blank or a
	// browser error page.
	ErrBlankOrErrorPage = errors.New("page is blank or an error page")

	// ErrAllMethodsExhausted means both the debug-truth path and the
	// desktop-crop fallback failed.
	ErrAllMethodsExhausted = errors.New("all capture methods exhausted")
)
