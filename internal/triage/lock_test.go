package triage

import (
	"sync"
	"testing"
)

func TestKeyedMutex_MutualExclusion(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same-key")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()

	unlockA := km.Lock("a")
	// A held lock on one key must not block another key.
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedMutex_EntriesReclaimed(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()
	for i := 0; i < 10; i++ {
		unlock := km.Lock("k")
		unlock()
	}

	km.mu.Lock()
	n := len(km.entries)
	km.mu.Unlock()
	if n != 0 {
		t.Errorf("entries = %d, want 0 after all unlocks", n)
	}
}
