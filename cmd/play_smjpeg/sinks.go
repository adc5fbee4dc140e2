package main

import (
	"fmt"
	"os"
	"path/filepath"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
)

// ppmVideoSurface writes each decoded frame to dir as a numbered binary PPM
// (P6) file. It stands in for a real display surface, which is outside this
// tool's scope.
type ppmVideoSurface struct {
	dir    string
	width  int
	height int
	n      int
}

func newPPMVideoSurface(dir string, width, height int) (*ppmVideoSurface, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, smjpegerrors.NewIoError("play_smjpeg.mkdir_video_out", err)
	}
	return &ppmVideoSurface{dir: dir, width: width, height: height}, nil
}

// Render implements playback.VideoSurface. rows holds one RGB24 row per
// scanline, which is what Target negotiates for this surface's bit depth.
func (s *ppmVideoSurface) Render(timestampMs uint32, rows [][]byte) error {
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%05d-%dms.ppm", s.n, timestampMs))
	f, err := os.Create(path)
	if err != nil {
		return smjpegerrors.NewIoError("play_smjpeg.write_frame", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "P6\n%d %d\n255\n", s.width, s.height); err != nil {
		return smjpegerrors.NewIoError("play_smjpeg.write_frame", err)
	}
	for _, row := range rows {
		if _, err := f.Write(row); err != nil {
			return smjpegerrors.NewIoError("play_smjpeg.write_frame", err)
		}
	}
	s.n++
	return nil
}

// pcmAudioSink drains a ring buffer to a raw PCM file. It is driven by its
// own goroutine in main rather than by the scheduler, matching the real
// isolation between the demux/scheduler producer and whatever consumes
// audio downstream.
type pcmAudioSink struct {
	f *os.File
}

func newPCMAudioSink(path string) (*pcmAudioSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, smjpegerrors.NewIoError("play_smjpeg.create_audio_out", err)
	}
	return &pcmAudioSink{f: f}, nil
}

func (s *pcmAudioSink) Close() error { return s.f.Close() }
