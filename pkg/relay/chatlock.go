package relay

import (
	"sync"

	"github.com/google/uuid"
)

// ChatLocker serializes relay runs per chat id so concurrent submissions to
// the same chat never interleave their persisted rows. Distinct chats run
// fully in parallel. Entries are reference counted and removed once the
// last holder unlocks.
type ChatLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatLocker() *ChatLocker {
	return &ChatLocker{
		locks: make(map[uuid.UUID]*chatLock),
	}
}

// Lock blocks until the chat's lock is held and returns the unlock func.
func (l *ChatLocker) Lock(chatId uuid.UUID) func() {
	l.mu.Lock()
	cl, ok := l.locks[chatId]
	if !ok {
		cl = &chatLock{}
		l.locks[chatId] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatId)
		}
		l.mu.Unlock()
	}
}
