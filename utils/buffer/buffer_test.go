package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Parallel()

	b := Get(100)
	require.Equal(t, 100, b.Len())
	require.GreaterOrEqual(t, b.Cap(), defaultBufSize)
	b.Release()

	big := Get(bigBufSize + 1)
	require.Equal(t, bigBufSize+1, big.Len())
	big.Release()
	big.Release()
}

func TestResize(t *testing.T) {
	t.Parallel()

	b := Get(4)
	copy(b.Data(), []byte{1, 2, 3, 4})
	b.Resize(2)
	require.Equal(t, []byte{1, 2}, b.Data())

	b.Resize(defaultBufSize * 2)
	require.Equal(t, defaultBufSize*2, b.Len())
	require.Equal(t, []byte{1, 2}, b.Data()[:2])
	b.Release()
}
