package main

import (
	"flag"
	"fmt"
	"os"
)

type cliConfig struct {
	input       string
	videoOutDir string
	audioOut    string
	realtime    bool
	seekMs      uint
	logLevel    string
	metricsAddr string
	showVersion bool
}

var version = "dev"

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("play_smjpeg", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.input, "i", "", "Input SMJPEG file (required)")
	fs.StringVar(&cfg.videoOutDir, "video-out", "", "Directory to write decoded video frames as PPM files (empty disables video output)")
	fs.StringVar(&cfg.audioOut, "audio-out", "", "File to append decoded raw PCM audio to (empty disables audio output)")
	fs.BoolVar(&cfg.realtime, "realtime", true, "Pace playback to each chunk's timestamp instead of draining as fast as possible")
	fs.UintVar(&cfg.seekMs, "seek", 0, "Seek to this timestamp, in milliseconds, before playing")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (empty disables the metrics server)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.showVersion {
		return cfg, nil
	}
	if cfg.input == "" {
		return nil, fmt.Errorf("-i is required")
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	return cfg, nil
}
