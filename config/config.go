// Package config loads the options shared by every mmstream component.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/playout"
)

const envPrefix = "MMSTREAM"

type Config struct {
	LogLevel        string      `mapstructure:"log_level"`
	CodecPreference string      `mapstructure:"codec_preference"`
	MailboxSize     int         `mapstructure:"mailbox_size"`
	Audio           AudioConfig `mapstructure:"audio"`
	Debug           DebugConfig `mapstructure:"debug"`
}

type AudioConfig struct {
	TargetLatency    time.Duration `mapstructure:"target_latency"`
	LowWatermark     time.Duration `mapstructure:"low_watermark"`
	HighWatermark    time.Duration `mapstructure:"high_watermark"`
	OutputSampleRate uint32        `mapstructure:"output_sample_rate"`
	Period           time.Duration `mapstructure:"period"` // pull period of the clock output
}

type DebugConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the debug server
}

// Default returns 40/20/60 ms watermarks, info logging and H.265 preference.
func Default() Config {
	marks := playout.DefaultWatermarks()
	return Config{
		LogLevel:        logrus.InfoLevel.String(),
		CodecPreference: "h265",
		MailboxSize:     256, //nolint:mnd
		Audio: AudioConfig{
			TargetLatency: marks.Target,
			LowWatermark:  marks.Low,
			HighWatermark: marks.High,
			Period:        10 * time.Millisecond, //nolint:mnd
		},
	}
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":          "log_level",
	"codec":              "codec_preference",
	"mailbox-size":       "mailbox_size",
	"target-latency":     "audio.target_latency",
	"low-watermark":      "audio.low_watermark",
	"high-watermark":     "audio.high_watermark",
	"output-sample-rate": "audio.output_sample_rate",
	"period":             "audio.period",
	"debug-listen":       "debug.listen",
}

// Load merges defaults, the optional config file at path, MMSTREAM_*
// environment variables and the flags that were set, in increasing priority.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("codec_preference", d.CodecPreference)
	v.SetDefault("mailbox_size", d.MailboxSize)
	v.SetDefault("audio.target_latency", d.Audio.TargetLatency)
	v.SetDefault("audio.low_watermark", d.Audio.LowWatermark)
	v.SetDefault("audio.high_watermark", d.Audio.HighWatermark)
	v.SetDefault("audio.output_sample_rate", d.Audio.OutputSampleRate)
	v.SetDefault("audio.period", d.Audio.Period)
	v.SetDefault("debug.listen", d.Debug.Listen)
}

// RegisterFlags adds the flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("log-level", d.LogLevel, "log level: trace, debug, info, warning, error")
	flags.String("codec", d.CodecPreference, "preferred video codec: h264 or h265")
	flags.Int("mailbox-size", d.MailboxSize, "queued events per session mailbox")
	flags.Duration("target-latency", d.Audio.TargetLatency, "audio buffer level resumed after an underrun")
	flags.Duration("low-watermark", d.Audio.LowWatermark, "audio buffer level below which silence is played")
	flags.Duration("high-watermark", d.Audio.HighWatermark, "audio buffer level above which playout skips ahead")
	flags.Uint32("output-sample-rate", d.Audio.OutputSampleRate, "audio output rate, 0 keeps the stream rate")
	flags.Duration("period", d.Audio.Period, "audio output pull period")
	flags.String("debug-listen", d.Debug.Listen, "address of the debug HTTP server, empty disables it")
}

var ErrInvalid = errors.New("config: invalid value")

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if ct, ok := mmstream.ParseCodecType(c.CodecPreference); !ok || !ct.IsVideo() {
		return fmt.Errorf("%w: codec_preference %q", ErrInvalid, c.CodecPreference)
	}
	if c.MailboxSize <= 0 {
		return fmt.Errorf("%w: mailbox_size %d", ErrInvalid, c.MailboxSize)
	}
	if c.Audio.Period <= 0 {
		return fmt.Errorf("%w: audio.period %v", ErrInvalid, c.Audio.Period)
	}
	if err := c.Watermarks().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// Codec returns the preferred video codec.
func (c *Config) Codec() mmstream.CodecType {
	ct, _ := mmstream.ParseCodecType(c.CodecPreference)
	return ct
}

func (c *Config) Watermarks() playout.Watermarks {
	return playout.Watermarks{
		Target: c.Audio.TargetLatency,
		Low:    c.Audio.LowWatermark,
		High:   c.Audio.HighWatermark,
	}
}

func (c *Config) PlayerConfig() playout.PlayerConfig {
	return playout.PlayerConfig{
		Watermarks:       c.Watermarks(),
		OutputSampleRate: c.Audio.OutputSampleRate,
	}
}
