package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get fires after duration", func(t *testing.T) {
		begin := time.Now()
		timer := GetTimer(50 * time.Millisecond)
		defer PutTimer(timer)

		select {
		case fired := <-timer.C:
			assert.GreaterOrEqual(fired.Sub(begin), 45*time.Millisecond)
		case <-time.After(time.Second):
			t.Error("timer should have fired")
		}
	})

	t.Run("Put unfired timer", func(t *testing.T) {
		timer1 := GetTimer(20 * time.Millisecond)
		PutTimer(timer1)

		time.Sleep(40 * time.Millisecond)

		begin := time.Now()
		timer2 := GetTimer(100 * time.Millisecond)
		defer PutTimer(timer2)

		tick := <-timer2.C
		assert.GreaterOrEqual(tick.Sub(begin), 90*time.Millisecond)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestBufferPool(t *testing.T) {
	assert := assert.New(t)

	buf := GetBuffer()
	buf.WriteString("payload")
	PutBuffer(buf)

	buf = GetBuffer()
	assert.Zero(buf.Len())

	big := GetBuffer()
	big.Grow(maxPooledBufferSize * 2)
	PutBuffer(big)
	PutBuffer(nil)
}
