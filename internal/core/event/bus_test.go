package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{ s string }

func TestEventsDeliveredAfterSwap(t *testing.T) {
	b := NewBus()
	var pings []int
	var pongs []string
	Subscribe(b, func(p ping) { pings = append(pings, p.n) })
	Subscribe(b, func(p pong) { pongs = append(pongs, p.s) })

	Emit(b, ping{1})
	Emit(b, pong{"a"})
	assert.Equal(t, 0, b.DispatchAll())
	assert.Empty(t, pings)

	b.SwapBuffers()
	assert.Equal(t, 2, b.DispatchAll())
	assert.Equal(t, []int{1}, pings)
	assert.Equal(t, []string{"a"}, pongs)

	// Front buffer is consumed by dispatch.
	assert.Equal(t, 0, b.DispatchAll())
	b.SwapBuffers()
	assert.Equal(t, 0, b.DispatchAll())
}

func TestHandlerEmitsIntoNextSwap(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(p ping) { Emit(b, pong{"reply"}) })
	Subscribe(b, func(p pong) { got = append(got, p.s) })

	Emit(b, ping{1})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Empty(t, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []string{"reply"}, got)
}

func TestConcurrentEmit(t *testing.T) {
	b := NewBus()
	count := 0
	Subscribe(b, func(ping) { count++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Emit(b, ping{j})
			}
		}()
	}
	wg.Wait()

	b.SwapBuffers()
	assert.Equal(t, 800, b.DispatchAll())
	assert.Equal(t, 800, count)
}

func TestNilBusDropsEvents(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { Emit(b, ping{1}) })
}
