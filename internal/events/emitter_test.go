package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterFiresListenersInOrder(t *testing.T) {
	e := NewEmitter()
	var calls []string
	e.Subscribe(func() { calls = append(calls, "first") })
	e.Subscribe(func() { calls = append(calls, "second") })

	e.Fire()

	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, int64(1), e.FireCount())
}

func TestSubscriptionDisposeIsIdempotent(t *testing.T) {
	e := NewEmitter()
	count := 0
	sub := e.Subscribe(func() { count++ })
	require.Equal(t, 1, e.ListenerCount())

	sub.Dispose()
	sub.Dispose()
	e.Fire()

	assert.Equal(t, 0, count)
	assert.Equal(t, 0, e.ListenerCount())
}

func TestListenerDisposedDuringFireIsSkipped(t *testing.T) {
	e := NewEmitter()
	var second Subscription
	secondCalls := 0
	e.Subscribe(func() { second.Dispose() })
	second = e.Subscribe(func() { secondCalls++ })

	e.Fire()

	assert.Equal(t, 0, secondCalls)
}

func TestListenerMaySubscribeDuringFire(t *testing.T) {
	e := NewEmitter()
	lateCalls := 0
	e.Subscribe(func() {
		e.Subscribe(func() { lateCalls++ })
	})

	e.Fire()
	assert.Equal(t, 0, lateCalls, "listener added mid-fire joins the next round")

	e.Fire()
	assert.Equal(t, 1, lateCalls)
}

func TestClosedEmitterIgnoresFireAndSubscribe(t *testing.T) {
	e := NewEmitter()
	count := 0
	e.Subscribe(func() { count++ })
	e.Close()

	e.Fire()
	sub := e.Subscribe(func() { count++ })
	e.Fire()
	sub.Dispose()

	assert.Equal(t, 0, count)
	assert.Equal(t, int64(0), e.FireCount())
}

func TestEmitterConcurrentFireAndDispose(t *testing.T) {
	e := NewEmitter()
	var mu sync.Mutex
	count := 0
	subs := make([]Subscription, 0, 50)
	for i := 0; i < 50; i++ {
		subs = append(subs, e.Subscribe(func() {
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Fire()
		}()
	}
	for _, s := range subs {
		wg.Add(1)
		go func(s Subscription) {
			defer wg.Done()
			s.Dispose()
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 0, e.ListenerCount())
	assert.Equal(t, int64(10), e.FireCount())
}

func TestSubscriptionFuncRunsOnce(t *testing.T) {
	n := 0
	s := SubscriptionFunc(func() { n++ })
	s.Dispose()
	s.Dispose()
	assert.Equal(t, 1, n)

	// nil function is tolerated
	SubscriptionFunc(nil).Dispose()
}
