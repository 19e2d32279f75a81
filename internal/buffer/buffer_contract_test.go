package buffer_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/protected-buffer/internal/buffer"
)

// forEachKind runs fn as a subtest against every implementation, so both
// buffers are held to the same contract.
func forEachKind(t *testing.T, fn func(t *testing.T, kind buffer.Kind)) {
	t.Helper()
	for _, kind := range buffer.Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			fn(t, kind)
		})
	}
}

func newBuffer[T any](t *testing.T, kind buffer.Kind, capacity int, opts ...buffer.Option) buffer.Buffer[T] {
	t.Helper()
	b, err := buffer.New[T](kind, capacity, opts...)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func past() time.Time { return time.Now().Add(-time.Second) }

func TestNew_InvalidCapacity(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		for _, c := range []int{0, -1} {
			b, err := buffer.New[int](kind, c)
			require.ErrorIs(t, err, buffer.ErrInvalidCapacity)
			assert.Nil(t, b)
		}
	})
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := buffer.New[int](buffer.Kind(42), 1)
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want buffer.Kind
	}{
		{"cond", buffer.KindCond},
		{"CondVar", buffer.KindCond},
		{"semaphore", buffer.KindSemaphore},
		{" sem ", buffer.KindSemaphore},
	}
	for _, tt := range tests {
		got, err := buffer.ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := buffer.ParseKind("spinlock")
	assert.Error(t, err)

	var k buffer.Kind
	require.NoError(t, k.UnmarshalText([]byte("sem")))
	assert.Equal(t, buffer.KindSemaphore, k)
	text, err := k.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "semaphore", string(text))
}

func TestBuffer_LenCap(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 3)
		assert.Equal(t, 0, b.Len())
		assert.Equal(t, 3, b.Cap())

		b.Put(1)
		require.NoError(t, b.Add(2))
		assert.Equal(t, 2, b.Len())
	})
}

// Capacity-2 scenario: add/remove never block and report full/empty.
func TestBuffer_NonBlockingScenario(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 2)

		require.NoError(t, b.Add(1))
		require.NoError(t, b.Add(2))
		require.ErrorIs(t, b.Add(3), buffer.ErrWouldBlock)
		assert.Equal(t, 2, b.Len(), "failed Add must not mutate")

		v, err := b.Remove()
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		require.NoError(t, b.Add(3))

		for _, want := range []int{2, 3} {
			v, err = b.Remove()
			require.NoError(t, err)
			assert.Equal(t, want, v)
		}

		_, err = b.Remove()
		require.ErrorIs(t, err, buffer.ErrWouldBlock)
		assert.Equal(t, 0, b.Len(), "failed Remove must not mutate")
	})
}

// Capacity-1 scenario: a Get on an empty buffer waits for the next Put.
func TestBuffer_BlockingScenario(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 1)

		b.Put(5)
		assert.Equal(t, 5, b.Get())

		got := make(chan int, 1)
		go func() { got <- b.Get() }()

		select {
		case v := <-got:
			t.Fatalf("Get returned %d on empty buffer", v)
		case <-time.After(50 * time.Millisecond):
		}

		b.Put(7)

		select {
		case v := <-got:
			assert.Equal(t, 7, v)
		case <-time.After(2 * time.Second):
			t.Fatal("Get did not complete after Put")
		}
	})
}

// A Put on a full buffer waits for the next Get.
func TestBuffer_PutBlocksWhileFull(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 1)
		b.Put(1)

		done := make(chan struct{})
		go func() {
			b.Put(2)
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("Put returned on full buffer")
		case <-time.After(50 * time.Millisecond):
		}

		assert.Equal(t, 1, b.Get())

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Put did not complete after Get")
		}
		assert.Equal(t, 2, b.Get())
	})
}

func TestBuffer_PastDeadline(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 1)

		start := time.Now()
		_, err := b.Poll(past())
		require.ErrorIs(t, err, buffer.ErrTimeout)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, 0, b.Len())

		// Ready operations complete even with an expired deadline.
		require.NoError(t, b.Offer(9, past()))
		assert.Equal(t, 1, b.Len())

		start = time.Now()
		require.ErrorIs(t, b.Offer(10, past()), buffer.ErrTimeout)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, 1, b.Len())

		v, err := b.Poll(past())
		require.NoError(t, err)
		assert.Equal(t, 9, v)
	})
}

func TestBuffer_PollTimesOutAtDeadline(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 1)

		const wait = 50 * time.Millisecond
		start := time.Now()
		_, err := b.Poll(start.Add(wait))
		elapsed := time.Since(start)

		require.ErrorIs(t, err, buffer.ErrTimeout)
		assert.GreaterOrEqual(t, elapsed, wait)
		assert.Less(t, elapsed, 2*time.Second)
		assert.Equal(t, 0, b.Len())
	})
}

func TestBuffer_OfferTimesOutAtDeadline(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 1)
		b.Put(1)

		const wait = 50 * time.Millisecond
		start := time.Now()
		err := b.Offer(2, start.Add(wait))
		elapsed := time.Since(start)

		require.ErrorIs(t, err, buffer.ErrTimeout)
		assert.GreaterOrEqual(t, elapsed, wait)
		assert.Equal(t, 1, b.Len())
		assert.Equal(t, 1, b.Get())
	})
}

func TestBuffer_TimedOpsSucceedBeforeDeadline(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[int](t, kind, 1)

		go func() {
			time.Sleep(20 * time.Millisecond)
			b.Put(3)
		}()
		v, err := b.Poll(time.Now().Add(5 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, 3, v)

		b.Put(4)
		go func() {
			time.Sleep(20 * time.Millisecond)
			b.Get()
		}()
		require.NoError(t, b.Offer(5, time.Now().Add(5*time.Second)))
		assert.Equal(t, 5, b.Get())
	})
}

// Nil payloads occupy a slot like any other value and are never mistaken
// for a failed operation.
func TestBuffer_NilPayload(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		b := newBuffer[*int](t, kind, 2)

		require.NoError(t, b.Add(nil))
		b.Put(nil)
		require.ErrorIs(t, b.Add(nil), buffer.ErrWouldBlock)
		assert.Equal(t, 2, b.Len())

		v, err := b.Remove()
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = b.Poll(past())
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = b.Remove()
		require.ErrorIs(t, err, buffer.ErrWouldBlock)
	})
}

func TestBuffer_Trace(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		var out bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
		b := newBuffer[int](t, kind, 1, buffer.WithLogger(logger))

		require.NoError(t, b.Add(1))
		require.ErrorIs(t, b.Add(2), buffer.ErrWouldBlock)
		assert.Equal(t, 1, b.Get())
		_, err := b.Poll(past())
		require.ErrorIs(t, err, buffer.ErrTimeout)

		var records []map[string]any
		dec := json.NewDecoder(&out)
		for dec.More() {
			var rec map[string]any
			require.NoError(t, dec.Decode(&rec))
			records = append(records, rec)
		}
		require.Len(t, records, 4)

		want := []struct {
			op, mode, key string
			val           any
		}{
			{"add", "non-blocking", "value", float64(1)},
			{"add", "non-blocking", "outcome", "would-block"},
			{"get", "blocking", "value", float64(1)},
			{"poll", "timed", "outcome", "timeout"},
		}
		for i, w := range want {
			rec := records[i]
			assert.Equal(t, "buffer op", rec["msg"])
			assert.Equal(t, kind.String(), rec["impl"])
			assert.Equal(t, w.op, rec["op"])
			assert.Equal(t, w.mode, rec["mode"])
			assert.Equal(t, w.val, rec[w.key])
		}
	})
}

func TestBuffer_TraceDisabledAboveDebug(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind buffer.Kind) {
		var out bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
		b := newBuffer[int](t, kind, 1, buffer.WithLogger(logger))

		b.Put(1)
		b.Get()
		assert.Zero(t, out.Len())
	})
}
