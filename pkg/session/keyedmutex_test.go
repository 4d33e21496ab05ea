package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	var active atomic.Int32
	var overlapped atomic.Bool

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.WithLock("same-key", func() {
				if active.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				active.Add(-1)
			})
		}()
	}

	wg.Wait()
	assert.Len(t, order, 5)
	assert.False(t, overlapped.Load(), "two holders of the same key ran at once")
}

func TestKeyedMutex_DisjointKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()

	release := make(chan struct{})
	holding := make(chan struct{})

	go km.WithLock("key-a", func() {
		close(holding)
		<-release
	})

	<-holding

	done := make(chan struct{})
	go km.WithLock("key-b", func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a lock on key-b should not wait for key-a")
	}

	close(release)
}

func TestKeyedMutex_LockUnlockSymmetry(t *testing.T) {
	km := NewKeyedMutex()

	unlock := km.Lock("k")

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		km.WithLock("k", func() { acquired.Store(true) })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquirer should have blocked while the first holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-done:
		assert.True(t, acquired.Load())
	case <-time.After(time.Second):
		t.Fatal("second acquirer never got the lock after Unlock")
	}
}

func TestKeyedMutex_EntriesDoNotLeak(t *testing.T) {
	km := NewKeyedMutex()

	km.WithLock("transient", func() {})

	km.mu.Lock()
	_, exists := km.entries["transient"]
	km.mu.Unlock()

	assert.False(t, exists, "an idle key's entry should be reclaimed once refs drop to zero")
}
