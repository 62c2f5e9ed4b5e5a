package h264

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec"
)

var (
	testSPS = []byte{0x67, 0x42, 0x00, 0x1e, 0xda, 0x05, 0x07, 0xe4}
	testPPS = []byte{0x68, 0xce, 0x38, 0x80}

	// High 4:4:4, chroma_format_idc 3, 320x240
	test444SPS = []byte{0x67, 0xf4, 0x00, 0x1e, 0x91, 0x96, 0x81, 0x41, 0xf9}
)

func TestNewCodecParameters(t *testing.T) {
	t.Parallel()

	par, err := NewCodecParameters([][]byte{testSPS, testPPS})
	require.NoError(t, err)
	require.Equal(t, mmstream.H264, par.Type())
	require.Equal(t, uint(320), par.Width())
	require.Equal(t, uint(240), par.Height())
	require.Equal(t, "avc1.42001E", par.Tag())
	require.Equal(t, 4, par.NALULengthSize())
	require.Equal(t, testSPS, par.SPS())
	require.Equal(t, testPPS, par.PPS())
	require.Equal(t, [][]byte{testSPS, testPPS}, par.ParameterSets())

	want := []byte{0x01, 0x42, 0x00, 0x1e, 0xff, 0xe1, 0x00, 0x08}
	want = append(want, testSPS...)
	want = append(want, 0x01, 0x00, 0x04)
	want = append(want, testPPS...)
	require.Equal(t, want, par.Record())

	var _ mmstream.DecoderConfiguration = par
}

func TestNewCodecParametersCopiesInput(t *testing.T) {
	t.Parallel()

	sps := append([]byte(nil), testSPS...)
	par, err := NewCodecParameters([][]byte{sps, testPPS})
	require.NoError(t, err)
	sps[1] = 0xff
	require.Equal(t, testSPS, par.SPS())
}

func TestNewCodecParametersErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sets     [][]byte
		err      error
		isImport bool
	}{
		{name: "pps only", sets: [][]byte{testPPS, testPPS}, err: ErrNoSPS},
		{name: "sps only", sets: [][]byte{testSPS, testSPS}, err: ErrNoPPS},
		{name: "truncated sps", sets: [][]byte{{0x67, 0x42}, testPPS}},
		{name: "garbled sps", sets: [][]byte{{0x67, 0xff, 0xff, 0xff, 0xff, 0xff}, testPPS}},
		{name: "chroma 4:4:4", sets: [][]byte{test444SPS, testPPS}, err: codec.ErrUnsupportedChromaFormat, isImport: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewCodecParameters(tt.sets)
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
			var importErr *codec.ImportError
			require.Equal(t, tt.isImport, errors.As(err, &importErr))
		})
	}
}

func TestNewCodecDataFromAVCDecoderConfRecord(t *testing.T) {
	t.Parallel()

	par, err := NewCodecParameters([][]byte{testSPS, testPPS})
	require.NoError(t, err)

	restored, err := NewCodecDataFromAVCDecoderConfRecord(par.Record())
	require.NoError(t, err)
	require.Equal(t, par.Record(), restored.Record())
	require.Equal(t, par.Width(), restored.Width())

	_, err = NewCodecDataFromAVCDecoderConfRecord(par.Record()[:10])
	require.ErrorIs(t, err, ErrDecconfInvalid)
}

func TestAVCDecoderConfRecordHighProfile(t *testing.T) {
	t.Parallel()

	rec := AVCDecoderConfRecord{
		AVCProfileIndication: 100,
		AVCLevelIndication:   0x28,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{{0x67, 0x64, 0x00, 0x28}},
		PPS:                  [][]byte{{0x68, 0xee}},
		ChromaFormat:         1,
		BitDepthLumaMinus8:   2,
		BitDepthChromaMinus8: 2,
		SPSExt:               [][]byte{{0x6d, 0x01}},
	}
	buf := make([]byte, rec.Len())
	require.Equal(t, len(buf), rec.Marshal(buf))
	require.Equal(t, []byte{0xfd, 0xfa, 0xfa, 0x01}, buf[len(buf)-8:len(buf)-4])

	var got AVCDecoderConfRecord
	n, err := got.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, rec, got)
}

func TestIsParameterSet(t *testing.T) {
	t.Parallel()

	for _, typ := range []uint8{NaluSPS, NaluPPS, NaluSPSExt} {
		require.True(t, IsParameterSet(typ))
	}
	for _, typ := range []uint8{NaluNonIDR, NaluCodedIDR, NaluSEI, NaluAUD} {
		require.False(t, IsParameterSet(typ))
	}
}
