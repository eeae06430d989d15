package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireSerializesSameSession(t *testing.T) {
	r := newRegistry()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := r.acquire("same")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestAcquireDifferentSessionsDoNotBlock(t *testing.T) {
	r := newRegistry()
	r.acquire("held") // held for the whole test

	done := make(chan struct{})
	go func() {
		release := r.acquire("other")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire on a different session blocked")
	}
}
