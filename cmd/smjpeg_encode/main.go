// Command smjpeg_encode muxes a sequence of JPEG frames and an optional raw
// PCM audio file into an SMJPEG container.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/logger"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/mux"
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
	log := logger.Logger().With("component", "smjpeg_encode")

	if err := run(cfg); err != nil {
		log.Error("encode failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
	log.Info("encode complete", "output", cfg.output)
}

func run(cfg *cliConfig) error {
	if len(cfg.frames) == 0 && cfg.audioPath == "" {
		return smjpegerrors.NewIoError("smjpeg_encode.no_tracks",
			fmt.Errorf("at least one of a frame list or -audio must be given"))
	}

	out, err := os.Create(cfg.output)
	if err != nil {
		return smjpegerrors.NewOutputOpenError("smjpeg_encode.create_output", err)
	}
	defer out.Close()

	videoFrames, err := newFileFrameSource(cfg.frames)
	if err != nil {
		return err
	}

	var audio *mux.AudioConfig
	var audioFrames mux.FrameSource = emptyFrameSource{}
	var audioSampleCount int64
	if cfg.audioPath != "" {
		audio = &mux.AudioConfig{
			Rate:     uint16(cfg.audioRate),
			Bits:     uint8(cfg.audioBits),
			Channels: 1,
			ADPCM:    cfg.audioADPCM,
		}
		src, err := newPCMFrameSource(cfg.audioPath, int(cfg.audioBits/8))
		if err != nil {
			return err
		}
		audioFrames = src

		if info, err := os.Stat(cfg.audioPath); err == nil {
			audioSampleCount = info.Size() / int64(cfg.audioBits/8)
		}
	}

	var video *mux.VideoConfig
	var duration uint32
	if len(cfg.frames) > 0 {
		video = &mux.VideoConfig{
			FPS:    cfg.fps,
			Width:  uint16(cfg.width),
			Height: uint16(cfg.height),
			Frames: uint32(len(cfg.frames)),
		}
		// Matches the per-chunk timestamp math the muxer itself uses
		// (truncating milliseconds-per-frame, not rounding the total), so
		// the written duration lines up with the timestamp of the last
		// chunk actually emitted.
		duration = uint32(len(cfg.frames)) * uint32(1000.0/cfg.fps)
	} else if cfg.audioPath != "" {
		duration = uint32(audioSampleCount * 1000 / int64(cfg.audioRate))
	}

	w := mux.NewWriter(out, nil)
	return w.Mux(duration, audio, video, audioFrames, videoFrames)
}

func exitCodeFor(err error) int {
	if code := smjpegerrors.StatusCode(err); code != 0 {
		return code
	}
	return 1
}
