package pcm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/mmstream"
)

func TestNewCodecParameters(t *testing.T) {
	t.Parallel()

	par, err := NewCodecParameters(mmstream.PCMMulaw, 1, 8000)
	require.NoError(t, err)
	require.Equal(t, "pcmu", par.Tag())
	require.Equal(t, mmstream.FLT, par.SampleFormat())

	par, err = NewCodecParameters(mmstream.PCMAlaw, 2, 16000)
	require.NoError(t, err)
	require.Equal(t, "pcma", par.Tag())
	require.Equal(t, uint8(2), par.Channels())

	for _, tt := range []struct {
		ct mmstream.CodecType
		ch uint8
		sr uint32
	}{
		{mmstream.OPUS, 1, 8000},
		{mmstream.PCMAlaw, 0, 8000},
		{mmstream.PCMAlaw, 3, 8000},
		{mmstream.PCMAlaw, 1, 0},
	} {
		_, err = NewCodecParameters(tt.ct, tt.ch, tt.sr)
		require.ErrorIs(t, err, ErrInvalidParameters)
	}
}
