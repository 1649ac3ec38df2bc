package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestChatLockerSerializesSameChat(t *testing.T) {
	locker := NewChatLocker()
	chatId := uuid.New()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(chatId)
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "holders of the same chat lock must never overlap")
}

func TestChatLockerDistinctChatsRunInParallel(t *testing.T) {
	locker := NewChatLocker()

	unlockA := locker.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock(uuid.New())
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a distinct chat blocked behind an unrelated holder")
	}
}

func TestChatLockerCleansUpEntries(t *testing.T) {
	locker := NewChatLocker()
	chatId := uuid.New()

	unlock := locker.Lock(chatId)
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks, "released locks must not leak map entries")
}

func TestChatLockerUnlockAllowsNextHolder(t *testing.T) {
	locker := NewChatLocker()
	chatId := uuid.New()

	unlock := locker.Lock(chatId)

	acquired := make(chan struct{})
	go func() {
		u := locker.Lock(chatId)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while it was still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock after release")
	}
}
