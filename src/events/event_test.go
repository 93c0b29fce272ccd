package events

import (
	"sync"
	"testing"

	"tradeapi-connector/src/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newTestEvent(t *testing.T) *Event[int] {
	return NewEvent[int]("test", logger.FromZap(zaptest.NewLogger(t), "events"))
}

func TestSubscribeDeduplicates(t *testing.T) {
	ev := newTestEvent(t)
	calls := 0
	h := NewHandler(func(int) { calls++ })

	ev.Subscribe(h)
	ev.Subscribe(h)
	ev.Trigger(1)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ev.Len())
}

func TestUnsubscribeAbsentIsNoop(t *testing.T) {
	ev := newTestEvent(t)
	registered := ev.SubscribeFunc(func(int) {})

	ev.Unsubscribe(NewHandler(func(int) {}))
	ev.Unsubscribe(nil)

	assert.Equal(t, 1, ev.Len())
	ev.Unsubscribe(registered)
	assert.Equal(t, 0, ev.Len())
}

func TestTriggerOrder(t *testing.T) {
	ev := newTestEvent(t)
	var order []string
	ev.SubscribeFunc(func(int) { order = append(order, "a") })
	ev.SubscribeFunc(func(int) { order = append(order, "b") })
	ev.SubscribeFunc(func(int) { order = append(order, "c") })

	ev.Trigger(0)

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTriggerUsesSnapshot(t *testing.T) {
	ev := newTestEvent(t)
	var got []string

	var h2 *Handler[int]
	h3 := NewHandler(func(int) { got = append(got, "h3") })
	h1 := NewHandler(func(int) {
		got = append(got, "h1")
		ev.Unsubscribe(h2)
		ev.Subscribe(h3)
	})
	h2 = NewHandler(func(int) { got = append(got, "h2") })

	ev.Subscribe(h1)
	ev.Subscribe(h2)

	ev.Trigger(0)
	assert.Equal(t, []string{"h1", "h2"}, got)

	got = nil
	ev.Trigger(0)
	assert.Equal(t, []string{"h1", "h3"}, got)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	ev := newTestEvent(t)
	reached := false
	ev.SubscribeFunc(func(int) { panic("boom") })
	ev.SubscribeFunc(func(int) { reached = true })

	assert.NotPanics(t, func() { ev.Trigger(0) })
	assert.True(t, reached)
}

func TestConcurrentTrigger(t *testing.T) {
	ev := newTestEvent(t)
	var mu sync.Mutex
	total := 0
	ev.SubscribeFunc(func(v int) {
		mu.Lock()
		total += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev.Trigger(1)
			ev.SubscribeFunc(func(int) {})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, total)
}
