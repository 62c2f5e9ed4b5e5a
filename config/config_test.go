package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/mmstream"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, Default(), *cfg)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, lvl)
	require.Equal(t, mmstream.H265, cfg.Codec())
	require.Equal(t, 40*time.Millisecond, cfg.Watermarks().Target)
	require.Equal(t, 20*time.Millisecond, cfg.Watermarks().Low)
	require.Equal(t, 60*time.Millisecond, cfg.Watermarks().High)
}

func TestLoadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
codec_preference: h264
audio:
  target_latency: 50ms
  high_watermark: 80ms
  output_sample_rate: 48000
`), 0o600))

	t.Setenv("MMSTREAM_AUDIO_HIGH_WATERMARK", "90ms")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--mailbox-size=16", "--log-level=trace"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "trace", cfg.LogLevel, "flag over file")
	require.Equal(t, mmstream.H264, cfg.Codec())
	require.Equal(t, 16, cfg.MailboxSize)
	require.Equal(t, 50*time.Millisecond, cfg.Audio.TargetLatency)
	require.Equal(t, 20*time.Millisecond, cfg.Audio.LowWatermark, "default kept")
	require.Equal(t, 90*time.Millisecond, cfg.Audio.HighWatermark, "env over file")
	require.Equal(t, uint32(48000), cfg.PlayerConfig().OutputSampleRate)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "level", modify: func(c *Config) { c.LogLevel = "loud" }},
		{name: "audio codec", modify: func(c *Config) { c.CodecPreference = "opus" }},
		{name: "unknown codec", modify: func(c *Config) { c.CodecPreference = "vp9" }},
		{name: "mailbox", modify: func(c *Config) { c.MailboxSize = 0 }},
		{name: "period", modify: func(c *Config) { c.Audio.Period = 0 }},
		{name: "watermark order", modify: func(c *Config) { c.Audio.LowWatermark = 50 * time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
