package ring

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// read copies up to len(p) bytes into p and consumes them.
func read(b *Buffer, p []byte) int {
	first, second := b.Peek(len(p))
	n := copy(p, first)
	n += copy(p[n:], second)
	return b.Consume(n)
}

func TestProduceConsume(t *testing.T) {
	t.Parallel()

	b := New(8)
	require.Equal(t, 8, b.Cap())
	require.Zero(t, b.Len())

	require.True(t, b.Produce([]byte{1, 2, 3, 4, 5}))
	require.Equal(t, 5, b.Len())
	require.Equal(t, 3, b.Free())

	out := make([]byte, 3)
	require.Equal(t, 3, read(b, out))
	require.Equal(t, []byte{1, 2, 3}, out)

	// wraps around the end of the backing array
	require.True(t, b.Produce([]byte{6, 7, 8, 9, 10, 11}))
	require.Equal(t, 8, b.Len())
	first, second := b.Peek(8)
	require.Equal(t, []byte{4, 5, 6, 7, 8}, first)
	require.Equal(t, []byte{9, 10, 11}, second)

	require.Equal(t, 8, b.Consume(100))
	require.Zero(t, b.Len())
	first, second = b.Peek(4)
	require.Nil(t, first)
	require.Nil(t, second)
}

func TestProduceOverrunLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	b := New(4)
	require.True(t, b.Produce([]byte{1, 2, 3}))
	require.False(t, b.Produce([]byte{4, 5}))
	require.Equal(t, 3, b.Len())

	out := make([]byte, 4)
	require.Equal(t, 3, read(b, out))
	require.Equal(t, []byte{1, 2, 3}, out[:3])

	require.True(t, b.Produce(nil))
	require.False(t, b.Produce(make([]byte, 5)))
	require.True(t, b.Produce(make([]byte, 4)))
}

func TestReset(t *testing.T) {
	t.Parallel()

	b := New(4)
	require.True(t, b.Produce([]byte{1, 2, 3}))
	b.Reset()
	require.Zero(t, b.Len())
	require.Equal(t, 4, b.Free())
}

func TestFIFOAgainstModel(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(7))
	b := New(64)
	var model []byte
	next := byte(0)
	for range 10000 {
		if r.Intn(2) == 0 {
			p := make([]byte, r.Intn(40))
			for i := range p {
				p[i] = next
				next++
			}
			ok := b.Produce(p)
			require.Equal(t, len(model)+len(p) <= 64, ok)
			if ok {
				model = append(model, p...)
			}
		} else {
			out := make([]byte, r.Intn(40))
			n := read(b, out)
			require.Equal(t, min(len(out), len(model)), n)
			require.Equal(t, model[:n], out[:n])
			model = model[n:]
		}
		require.Equal(t, len(model), b.Len())
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	const total = 1 << 20
	b := New(1000)
	src := make([]byte, total)
	rand.New(rand.NewSource(3)).Read(src)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for off := 0; off < total; {
			n := min(97, total-off)
			if b.Produce(src[off : off+n]) {
				off += n
			}
		}
	}()

	dst := make([]byte, 0, total)
	buf := make([]byte, 131)
	for len(dst) < total {
		n := read(b, buf)
		dst = append(dst, buf[:n]...)
	}
	wg.Wait()
	require.True(t, bytes.Equal(src, dst))
}
