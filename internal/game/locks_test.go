package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocksSerializeSameGame(t *testing.T) {
	locks := newSessionLocks()

	const workers = 16
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				locks.Lock("game-1")
				counter++
				locks.Unlock("game-1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*100, counter)
}

func TestSessionLocksReleaseEntries(t *testing.T) {
	locks := newSessionLocks()

	locks.Lock("game-1")
	locks.Lock("game-2")
	locks.Unlock("game-2")
	locks.Unlock("game-1")

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}

func TestSessionLocksIndependentGames(t *testing.T) {
	locks := newSessionLocks()

	locks.Lock("game-1")
	done := make(chan struct{})
	go func() {
		locks.Lock("game-2")
		locks.Unlock("game-2")
		close(done)
	}()
	<-done
	locks.Unlock("game-1")
}
