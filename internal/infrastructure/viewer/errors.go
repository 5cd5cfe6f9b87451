package viewer

import "github.com/pkg/errors"

var (
	// ErrSessionClosed is returned when queueing to a closed viewer session.
	ErrSessionClosed = errors.New("viewer session closed")

	// ErrNotListening is returned by Serve before Listen succeeded.
	ErrNotListening = errors.New("viewer server is not listening")
)
