package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/config"
	"github.com/ugparu/mmstream/format/rtp"
	"github.com/ugparu/mmstream/playout"
	"github.com/ugparu/mmstream/session"
	"github.com/ugparu/mmstream/utils/logger"
	"github.com/ugparu/mmstream/utils/sdp"
	"golang.org/x/sync/errgroup"
)

const (
	videoClockRate  = 90000
	shutdownTimeout = 5 * time.Second
)

var errNoVideoMedia = errors.New("session description has no supported video media")

// replayOptions holds command options that are not part of config.Config.
type replayOptions struct {
	ConfigPath    string
	SDPPath       string
	VideoChannel  uint8
	AudioCodec    string
	AudioChannel  uint8
	AudioRate     uint32
	AudioChannels int
	Pace          bool
}

func newRootCommand() *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "mmreplay [flags] <capture|->",
		Short: "Replay an interleaved RTP capture through a stream session",
		Long: `Replay RTP packets framed as RTSP interleaved data ('$', channel, length)
through the video reassembly and audio playout pipeline. Video access units are
released by a headless renderer, audio is pulled by a wall-clock output.
Session statistics are printed as JSON when the replay ends.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), cfg, opts, args[0], cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	config.RegisterFlags(flags)
	flags.StringVar(&opts.ConfigPath, "config", "", "configuration file (yaml, toml or json)")
	flags.StringVar(&opts.SDPPath, "sdp", "", "session description of the capture; replaces the track flags")
	flags.Uint8Var(&opts.VideoChannel, "video-channel", 0, "interleaved channel carrying video RTP")
	flags.StringVar(&opts.AudioCodec, "audio-codec", "", "audio codec: opus, pcma or pcmu; empty disables audio")
	flags.Uint8Var(&opts.AudioChannel, "audio-channel", 2, "interleaved channel carrying audio RTP")
	flags.Uint32Var(&opts.AudioRate, "audio-rate", 48000, "audio RTP clock rate")
	flags.IntVar(&opts.AudioChannels, "audio-channels", 2, "audio channel count")
	flags.BoolVar(&opts.Pace, "pace", false, "release packets at the rate of their RTP timestamps")

	return cmd
}

// tracks returns the receiver tracks described by the options.
func (o *replayOptions) tracks(video mmstream.CodecType) ([]rtp.TrackConfig, error) {
	if o.SDPPath != "" {
		content, err := os.ReadFile(o.SDPPath)
		if err != nil {
			return nil, fmt.Errorf("read session description: %w", err)
		}
		medias, err := sdp.Parse(string(content))
		if err != nil {
			return nil, err
		}
		return sdpTracks(medias, video)
	}

	tracks := []rtp.TrackConfig{{
		Channel:   o.VideoChannel,
		Codec:     video,
		ClockRate: videoClockRate,
	}}
	if o.AudioCodec == "" {
		return tracks, nil
	}
	codec, ok := mmstream.ParseCodecType(o.AudioCodec)
	if !ok || !codec.IsAudio() {
		return nil, fmt.Errorf("unknown audio codec %q", o.AudioCodec)
	}
	return append(tracks, rtp.TrackConfig{
		Channel:   o.AudioChannel,
		Codec:     codec,
		ClockRate: o.AudioRate,
		Channels:  o.AudioChannels,
	}), nil
}

// sdpTracks picks one video and one audio media. Media i is expected on
// interleaved channel 2i, RTCP on 2i+1. Among several video medias the one
// with the preferred codec wins.
func sdpTracks(medias []sdp.Media, preferred mmstream.CodecType) ([]rtp.TrackConfig, error) {
	var video, audio *rtp.TrackConfig
	for i := range medias {
		m := &medias[i]
		if !m.Supported() {
			continue
		}
		cfg := &rtp.TrackConfig{
			Channel:       uint8(2 * i), //nolint:gosec,mnd // interleaved channels are 8 bit
			Codec:         m.Codec,
			ClockRate:     m.ClockRate,
			Channels:      m.Channels,
			ParameterSets: m.ParameterSets,
		}
		switch {
		case m.Codec.IsVideo():
			if video == nil || (video.Codec != preferred && m.Codec == preferred) {
				video = cfg
			}
		case audio == nil:
			audio = cfg
		}
	}
	if video == nil {
		return nil, errNoVideoMedia
	}
	tracks := []rtp.TrackConfig{*video}
	if audio != nil {
		tracks = append(tracks, *audio)
	}
	return tracks, nil
}

func openCapture(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func runReplay(ctx context.Context, cfg *config.Config, opts *replayOptions, path string, out io.Writer) error {
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	log := logger.New(lvl)
	defer log.Close()

	tracks, err := opts.tracks(cfg.Codec())
	if err != nil {
		return err
	}

	player, err := playout.NewPlayer(playout.NewClockOutput(cfg.Audio.Period, nil, log), cfg.PlayerConfig(), log)
	if err != nil {
		return err
	}
	rend := newNullRenderer(log)
	sess := session.New(rend, rend, player, session.Options{MailboxSize: cfg.MailboxSize}, log)
	if err = sess.Attach(); err != nil {
		return err
	}
	defer sess.Detach()

	recv := rtp.NewReceiver(sess, log)
	for _, t := range tracks {
		if err = recv.AddTrack(t); err != nil {
			return err
		}
	}

	src, err := openCapture(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	feeder := rtp.NewFeeder(src, recv, ctx.Done(), opts.Pace, log)
	if err = feeder.Feed(); err != nil {
		_ = src.Close()
		return err
	}

	g.Go(func() error {
		defer cancel()
		<-feeder.Done()
		feeder.Close()
		if err := sess.Drain(ctx); errors.Is(err, session.ErrDetached) {
			<-sess.Done()
			return sess.Err()
		}
		return nil
	})

	if cfg.Debug.Listen != "" {
		srv := newDebugServer(cfg.Debug.Listen, sess, recv, rend, log)
		g.Go(func() error {
			log.Infof(srv, "Listening on %s", cfg.Debug.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	report := newReport(sess, recv, rend)
	log.Infof(sess, "Replay done: %d packets, %d access units, %d audio frames",
		report.RTP.Packets, report.Session.AccessUnits, report.Session.AudioFrames)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil && err == nil {
		err = encErr
	}
	return err
}
