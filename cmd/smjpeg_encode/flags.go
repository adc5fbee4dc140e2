package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
)

// cliConfig holds user-supplied flag values prior to validation, mirroring
// the flag/validate split the RTMP server CLI uses.
type cliConfig struct {
	output      string
	fps         float64
	width       uint
	height      uint
	audioPath   string
	audioRate   uint
	audioBits   uint
	audioADPCM  bool
	logLevel    string
	showVersion bool
	frames      []string // positional JPEG frame paths
}

var version = "dev"

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("smjpeg_encode", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var fpsStr string

	fs.StringVar(&cfg.output, "o", "out.smj", "Output file path")
	fs.StringVar(&fpsStr, "r", "29.97", "Video frame rate (frames per second)")
	fs.UintVar(&cfg.width, "w", 0, "Video frame width (required if any frames are given)")
	fs.UintVar(&cfg.height, "h", 0, "Video frame height (required if any frames are given)")
	fs.StringVar(&cfg.audioPath, "audio", "", "Raw 16-bit mono PCM file to mux as the audio track")
	fs.UintVar(&cfg.audioRate, "audio-rate", 22050, "Audio sample rate, Hz")
	fs.UintVar(&cfg.audioBits, "audio-bits", 16, "Audio sample depth, bits")
	fs.BoolVar(&cfg.audioADPCM, "c", false, "Compress audio with IMA ADPCM instead of storing raw PCM")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.frames = fs.Args()

	// The reference encoder parsed -r with atoi, silently truncating a
	// fractional rate like "29.97" down to 29 and skewing every chunk
	// timestamp downstream. ParseFloat is used here instead so a
	// fractional frame rate is honored exactly.
	fps, err := strconv.ParseFloat(fpsStr, 64)
	if err != nil || fps <= 0 {
		return nil, fmt.Errorf("invalid -r %q: must be a positive number", fpsStr)
	}
	cfg.fps = fps

	if len(cfg.frames) > 0 && (cfg.width == 0 || cfg.height == 0) {
		return nil, errors.New("-w and -h are required when encoding video frames")
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.audioBits != 8 && cfg.audioBits != 16 {
		return nil, fmt.Errorf("audio-bits must be 8 or 16, got %d", cfg.audioBits)
	}

	return cfg, nil
}
