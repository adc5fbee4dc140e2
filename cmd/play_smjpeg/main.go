// Command play_smjpeg drives an SMJPEG file through the playback scheduler,
// writing decoded video frames and audio to disk in place of a real display
// and sound device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/logger"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/hooks"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/metrics"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/playback"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/ring"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "play_smjpeg")

	if err := run(cfg, log); err != nil {
		log.Error("playback failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(cfg *cliConfig, log *slog.Logger) error {
	f, err := os.Open(cfg.input)
	if err != nil {
		return smjpegerrors.NewIoError("play_smjpeg.open_input", err)
	}

	hookCfg := hooks.DefaultConfig()
	hookCfg.StdioFormat = "env"
	hm := hooks.NewManager(hookCfg, log)
	defer hm.Close()

	m, err := playback.Open(f, f, log, hm)
	if err != nil {
		f.Close()
		return err
	}
	defer m.Close()

	playbackLog := playback.NewPlaybackLogger(m.ID, log, 10*time.Second)
	for _, evt := range []hooks.EventType{hooks.EventFramePlayed, hooks.EventFrameSkipped} {
		hm.RegisterHook(evt, playbackLog)
	}
	defer playbackLog.Stop()

	if cfg.metricsAddr != "" {
		reg := metrics.NewRegistry()
		promReg := prometheus.NewRegistry()
		if err := reg.Register(promReg); err != nil {
			return smjpegerrors.NewIoError("play_smjpeg.register_metrics", err)
		}
		metricsHook := hooks.NewMetricsHook(m.ID, reg)
		for _, evt := range []hooks.EventType{
			hooks.EventFramePlayed, hooks.EventFrameSkipped, hooks.EventSeek,
			hooks.EventTruncated, hooks.EventTrackDisabled,
		} {
			hm.RegisterHook(evt, metricsHook)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	if v := m.VideoHeader(); v != nil && cfg.videoOutDir != "" {
		surface, err := newPPMVideoSurface(cfg.videoOutDir, int(v.Width), int(v.Height))
		if err != nil {
			return err
		}
		target, err := playback.NewTarget(0, 0, int(v.Width), int(v.Height), int(v.Width), int(v.Height),
			24, 0xFF0000, 0x00FF00, 0x0000FF, false, surface)
		if err != nil {
			return err
		}
		m.SetTarget(target)
	}

	var audioSink *pcmAudioSink
	if m.AudioHeader() != nil && cfg.audioOut != "" {
		audioSink, err = newPCMAudioSink(cfg.audioOut)
		if err != nil {
			return err
		}
		defer audioSink.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.seekMs > 0 {
		if err := m.Seek(uint32(cfg.seekMs)); err != nil {
			return err
		}
	}

	audioCtx, stopAudio := context.WithCancel(ctx)
	defer stopAudio()

	audioDone := make(chan struct{})
	if audioSink != nil {
		go drainAudio(audioCtx, m.AudioRing(), audioSink, audioDone)
	} else {
		close(audioDone)
	}

	m.Start()
	defer m.Stop()

	log.Info("playback started", "input", cfg.input, "movie_id", m.ID)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			break loop
		case <-ticker.C:
			played, err := m.Advance(16, cfg.realtime)
			if err != nil {
				return err
			}
			if m.AtEnd() && played == 0 {
				break loop
			}
		}
	}

	stopAudio()
	if audioSink != nil {
		<-audioDone
	}

	status := m.Status()
	if status.Code != 0 {
		return fmt.Errorf("movie stopped with status %d: %s", status.Code, status.Message)
	}
	log.Info("playback finished", "frames_played", m.Frame())
	return nil
}

// drainAudio copies decoded PCM out of the ring buffer to disk until ctx is
// canceled, matching the isolation between the demux/scheduler producer and
// whatever consumes audio on the output side.
func drainAudio(ctx context.Context, r *ring.Buffer, sink *pcmAudioSink, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, ring.SlotSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, ok := r.Pop(buf)
		if !ok {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if _, err := sink.f.Write(buf[:n]); err != nil {
			return
		}
	}
}

func exitCodeFor(err error) int {
	if code := smjpegerrors.StatusCode(err); code != 0 {
		return code
	}
	return 1
}
