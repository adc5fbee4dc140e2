package main

import (
	"os"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
)

// fileFrameSource supplies video frames by reading whole JPEG files in
// order, one per mux.FrameSource.Next call.
type fileFrameSource struct {
	paths []string
	i     int
}

func newFileFrameSource(paths []string) (*fileFrameSource, error) {
	return &fileFrameSource{paths: paths}, nil
}

func (s *fileFrameSource) Next() ([]byte, bool) {
	if s.i >= len(s.paths) {
		return nil, false
	}
	data, err := os.ReadFile(s.paths[s.i])
	s.i++
	if err != nil {
		return nil, false
	}
	return data, true
}

// pcmFrameSource supplies audio frames by reading fixed-size chunks (512
// samples' worth of bytes) from a raw PCM file, the same granularity the
// reference encoder chunked audio at.
type pcmFrameSource struct {
	f             *os.File
	bytesPerFrame int
}

func newPCMFrameSource(path string, bytesPerSample int) (*pcmFrameSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, smjpegerrors.NewIoError("smjpeg_encode.open_audio", err)
	}
	return &pcmFrameSource{f: f, bytesPerFrame: 512 * bytesPerSample}, nil
}

func (s *pcmFrameSource) Next() ([]byte, bool) {
	buf := make([]byte, s.bytesPerFrame)
	n, err := s.f.Read(buf)
	if n == 0 || err != nil {
		s.f.Close()
		return nil, false
	}
	return buf[:n], true
}

// emptyFrameSource is a mux.FrameSource with no frames, used when no audio
// file was given but Mux still needs a non-nil source to call.
type emptyFrameSource struct{}

func (emptyFrameSource) Next() ([]byte, bool) { return nil, false }
