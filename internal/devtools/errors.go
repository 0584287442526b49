package devtools

import "errors"

var (
	// ErrUnreachable means the debug port refused the connection or
	// returned something that isn't the introspection JSON.
	ErrUnreachable = errors.New("remote debug port unreachable")

	// ErrNoPage means the port answered but exposes no inspectable page.
	ErrNoPage = errors.New("no inspectable page on debug port")

	// ErrChannelTimeout means a control-channel open or command round
	// trip did not complete within its deadline.
	ErrChannelTimeout = errors.New("control channel timeout")
)
