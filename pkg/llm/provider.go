package llm

import (
	"context"
	"errors"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Fragment is one incremental piece of a model reply.
type Fragment struct {
	Content string
	Final   bool
}

// FragmentStream is a lazy, finite, single-pass sequence of fragments.
// Next returns io.EOF once the backend has sent its completion marker and
// closed the stream. A stream cannot be restarted; reconnecting requires a
// new OpenStream call. Close releases the underlying connection and is safe
// to call more than once.
type FragmentStream interface {
	Next() (Fragment, error)
	Close() error
}

var (
	// ErrBackendUnavailable covers connection-establishment failures and
	// mid-stream connection drops.
	ErrBackendUnavailable = errors.New("inference backend unavailable")

	// ErrBackendTimeout means the backend stayed silent longer than the
	// configured idle timeout.
	ErrBackendTimeout = errors.New("inference backend timed out")
)

// StreamProvider defines the contract for a streaming LLM backend
type StreamProvider interface {
	OpenStream(ctx context.Context, history []Message) (FragmentStream, error)
}
