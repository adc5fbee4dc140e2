// Package mux implements the SMJPEG muxer: it writes the magic, global
// header, and track headers, then interleaves audio and video data chunks
// so that audio never runs more than two video-frame-durations ahead of
// video, and finally writes the stream-end sentinel. On any write failure
// the Writer disables itself and further calls become no-ops, the same
// graceful-degradation behavior the reference FLV recorder used.
package mux

import (
	"io"
	"log/slog"
	"sync"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/adpcm"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
)

// samplesPerAudioFrame is the fixed audio granularity the interleave loop
// schedules against, matching the reference encoder's 512-sample chunking.
const samplesPerAudioFrame = 512

// AudioConfig describes the audio track to be written, or nil to omit audio
// entirely.
type AudioConfig struct {
	Rate     uint16
	Bits     uint8
	Channels uint8
	ADPCM    bool // true selects "APCM" encoding; false selects "NONE" (raw PCM passthrough)
}

// VideoConfig describes the video track to be written, or nil to omit video
// entirely.
type VideoConfig struct {
	FPS    float64
	Width  uint16
	Height uint16
	Frames uint32
}

// FrameSource supplies the next frame's raw bytes. Next returns ok=false
// once no more frames remain.
type FrameSource interface {
	Next() (data []byte, ok bool)
}

// Writer emits a complete SMJPEG stream to an underlying io.Writer.
// Not safe for concurrent use beyond the mutex guarding graceful disable;
// Mux is expected to run on a single goroutine.
type Writer struct {
	mu           sync.Mutex
	w            io.Writer
	logger       *slog.Logger
	disabled     bool
	bytesWritten uint64

	audio    *AudioConfig
	video    *VideoConfig
	adpcmSt  adpcm.State
	audioPos uint32 // running audio timeline, ms
	videoPos uint32 // running video timeline, ms
}

// NewWriter creates a Writer. logger may be nil, in which case slog.Default
// is used.
func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{w: w, logger: logger}
}

// Disabled reports whether a prior write failure has disabled the writer.
func (wr *Writer) Disabled() bool {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return wr.disabled
}

func (wr *Writer) fail(op string, err error) error {
	wr.logger.Error("mux write failed, disabling writer", "op", op, "error", err)
	wr.disabled = true
	return smjpegerrors.NewIoError(op, err)
}

// WriteHeader writes the magic, global header, the optional audio/video
// track headers, and the header-end sentinel. duration is the total
// playback duration in milliseconds; pass 0 if unknown ahead of time.
func (wr *Writer) WriteHeader(duration uint32, audio *AudioConfig, video *VideoConfig) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.disabled {
		return nil
	}
	wr.audio = audio
	wr.video = video

	if err := container.WriteGlobalHeader(wr.w, container.GlobalHeader{Version: container.FormatVersion, Duration: duration}); err != nil {
		return wr.fail("mux.write_global_header", err)
	}
	if audio != nil {
		encoding := container.AudioEncodingNone
		if audio.ADPCM {
			encoding = container.AudioEncodingADPCM
		}
		if err := container.WriteAudioHeader(wr.w, container.AudioHeader{
			Rate: audio.Rate, Bits: audio.Bits, Channels: audio.Channels, Encoding: encoding,
		}); err != nil {
			return wr.fail("mux.write_audio_header", err)
		}
	}
	if video != nil {
		if err := container.WriteVideoHeader(wr.w, container.VideoHeader{
			Frames: video.Frames, Width: video.Width, Height: video.Height, Encoding: container.VideoEncodingJFIF,
		}); err != nil {
			return wr.fail("mux.write_video_header", err)
		}
	}
	if err := container.WriteHeaderEnd(wr.w); err != nil {
		return wr.fail("mux.write_header_end", err)
	}
	return nil
}

// msPerAudioFrame returns the duration, in milliseconds, of one
// samplesPerAudioFrame-sample audio chunk at the configured rate.
func msPerAudioFrame(rate uint16) uint32 {
	if rate == 0 {
		return 0
	}
	return uint32(1000 * samplesPerAudioFrame / uint32(rate))
}

// msPerVideoFrame returns the duration, in milliseconds, of one video frame
// at the configured frame rate.
func msPerVideoFrame(fps float64) uint32 {
	if fps <= 0 {
		return 0
	}
	return uint32(1000.0 / fps)
}

// audioFrameSize returns the byte length of one samplesPerAudioFrame-sample
// PCM frame for the configured bit depth (mono; SMJPEG audio is single
// channel).
func audioFrameSize(bits uint8) int {
	return samplesPerAudioFrame * int(bits/8)
}

// WriteAudioChunk writes one audio data chunk at timestamp ms. pcm holds up
// to audioFrameSize(bits) bytes of signed 16-bit (or 8-bit) samples (the
// last chunk of a file may be shorter); when the track is configured for
// ADPCM, pcm is compressed into a new buffer using the writer's running
// predictor state, which persists across chunks (only
// the decoder resets per chunk, reading the prefix each chunk embeds).
func (wr *Writer) WriteAudioChunk(timestamp uint32, pcm []byte) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.disabled || wr.audio == nil {
		return nil
	}
	var body []byte
	if wr.audio.ADPCM {
		samples := bytesToSamples(pcm)
		body = make([]byte, adpcm.PrefixSize+len(samples)/2)
		adpcm.WritePrefix(body[:adpcm.PrefixSize], wr.adpcmSt)
		adpcm.Encode(&wr.adpcmSt, samples, body[adpcm.PrefixSize:])
	} else {
		body = pcm
	}
	if err := container.WriteChunkHeader(wr.w, container.ChunkHeader{
		Kind: container.TagAudioData, Timestamp: timestamp, Length: uint32(len(body)),
	}); err != nil {
		return wr.fail("mux.write_audio_chunk_header", err)
	}
	if _, err := wr.w.Write(body); err != nil {
		return wr.fail("mux.write_audio_chunk_body", err)
	}
	wr.bytesWritten += uint64(container.ChunkHeaderSize + len(body))
	return nil
}

// WriteVideoChunk writes one video data chunk at timestamp ms, containing
// an already-JPEG-encoded frame.
func (wr *Writer) WriteVideoChunk(timestamp uint32, jpegBytes []byte) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.disabled || wr.video == nil {
		return nil
	}
	if err := container.WriteChunkHeader(wr.w, container.ChunkHeader{
		Kind: container.TagVideoData, Timestamp: timestamp, Length: uint32(len(jpegBytes)),
	}); err != nil {
		return wr.fail("mux.write_video_chunk_header", err)
	}
	if _, err := wr.w.Write(jpegBytes); err != nil {
		return wr.fail("mux.write_video_chunk_body", err)
	}
	wr.bytesWritten += uint64(container.ChunkHeaderSize + len(jpegBytes))
	return nil
}

// WriteStreamEnd writes the "DONE" sentinel that closes the chunk stream.
// A failure here is reported as a FinalizeError rather than a generic
// IoError: the stream body is already fully written, so this is a failure
// to close out an otherwise-complete file, not a failure mid-stream.
func (wr *Writer) WriteStreamEnd() error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.disabled {
		return nil
	}
	if err := container.WriteStreamEnd(wr.w); err != nil {
		wr.logger.Error("mux write failed, disabling writer", "op", "mux.write_stream_end", "error", err)
		wr.disabled = true
		return smjpegerrors.NewFinalizeError("mux.write_stream_end", err)
	}
	return nil
}

// Mux drives the full encode: header, interleaved chunks, stream end. It
// pulls one audio frame and one video frame at a time from the supplied
// sources, keeping audio at most two video-frame-durations ahead of video
// before emitting the next video frame — the same pacing rule the reference
// encoder's main loop applied.
func (wr *Writer) Mux(duration uint32, audio *AudioConfig, video *VideoConfig, audioFrames, videoFrames FrameSource) error {
	if err := wr.WriteHeader(duration, audio, video); err != nil {
		return err
	}

	var msPerAudio, msPerVideo uint32
	if audio != nil {
		msPerAudio = msPerAudioFrame(audio.Rate)
	}
	if video != nil {
		msPerVideo = msPerVideoFrame(video.FPS)
	}

	audioTime := uint32(0)
	videoTime := uint32(0)
	audioDone := audio == nil
	videoDone := video == nil

	for !videoDone {
		// Keep audio within two video-frame-durations of the current video
		// position before advancing video by one frame.
		for !audioDone && audioTime < videoTime+2*msPerVideo {
			pcm, ok := audioFrames.Next()
			if !ok {
				audioDone = true
				break
			}
			if err := wr.WriteAudioChunk(audioTime, pcm); err != nil {
				return err
			}
			audioTime += msPerAudio
		}
		frame, ok := videoFrames.Next()
		if !ok {
			videoDone = true
			break
		}
		if err := wr.WriteVideoChunk(videoTime, frame); err != nil {
			return err
		}
		videoTime += msPerVideo
	}

	// Flush any remaining audio once video has exhausted its frames.
	for !audioDone {
		pcm, ok := audioFrames.Next()
		if !ok {
			audioDone = true
			break
		}
		if err := wr.WriteAudioChunk(audioTime, pcm); err != nil {
			return err
		}
		audioTime += msPerAudio
	}

	return wr.WriteStreamEnd()
}

// bytesToSamples decodes pcm as little-endian signed 16-bit samples (low
// byte first), independent of the host's byte order. A trailing odd byte
// is ignored.
func bytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
	return samples
}
