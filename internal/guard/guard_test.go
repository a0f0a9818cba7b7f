package guard

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryStartOnce(t *testing.T) {
	g := New()
	assert.False(t, g.Started())

	assert.True(t, g.TryStart())
	assert.True(t, g.Started())
	assert.False(t, g.TryStart())
	assert.False(t, g.TryStart())
}

func TestTryStartConcurrent(t *testing.T) {
	g := New()

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryStart() {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
