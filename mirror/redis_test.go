package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/basilfx/go-e32"
	"github.com/basilfx/go-e32/e32sim"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name  string
	key   string
	value interface{}
	ttl   time.Duration
}

type fakeClient struct {
	lock   sync.Mutex
	calls  []call
	setErr error
	closed bool
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.calls = append(f.calls, call{"set", key, value, expiration})

	return redis.NewStatusResult("OK", f.setErr)
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.calls = append(f.calls, call{"publish", channel, message, 0})

	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) recorded() []call {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]call(nil), f.calls...)
}

func TestUpdate(t *testing.T) {
	f := &fakeClient{}
	r := newRedis(f, WithPrefix("node:"), WithChannel("radio"), WithTTL(time.Minute))

	require.NoError(t, r.Update(context.Background(), "7", []byte("21.5")))

	assert.Equal(t, []call{
		{"set", "node:7", []byte("21.5"), time.Minute},
		{"publish", "radio", []byte("21.5"), 0},
	}, f.recorded())

	require.NoError(t, r.Close())
	assert.True(t, f.closed)
}

func TestUpdateSetError(t *testing.T) {
	f := &fakeClient{setErr: errors.New("connection refused")}
	r := newRedis(f)

	err := r.Update(context.Background(), "7", []byte("x"))

	assert.EqualError(t, err, "set e32:7: connection refused")
	assert.Len(t, f.recorded(), 1)
}

func TestForward(t *testing.T) {
	a := e32sim.New(1, 2, 3)
	b := e32sim.New(1, 2, 3)
	e32sim.Connect(a, b)

	la := e32.NewLink()
	lb := e32.NewLink()

	go la.Serve(a.Port())
	go lb.Serve(b.Port())

	defer func() {
		la.Shutdown()
		lb.Shutdown()
		a.Close()
		b.Close()
	}()

	f := &fakeClient{}
	r := newRedis(f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.Forward(ctx, lb, "remote")
		close(done)
	}()

	// Wait until Forward registered its listener.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, la.Send(e32.Message{Payload: []byte("hello")}))

	assert.Eventually(t, func() bool {
		return len(f.recorded()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	calls := f.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "e32:remote", calls[0].key)
	assert.Equal(t, []byte("hello"), calls[0].value)
}
