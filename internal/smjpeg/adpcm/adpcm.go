// Package adpcm implements the IMA ADPCM variant used by SMJPEG's "APCM"
// audio encoding: a 4-byte predictor prefix (previous sample, quantizer
// index, and a reserved byte) followed by 4-bit nibbles, two samples per
// byte. Decoding never carries state across chunk boundaries — every chunk
// embeds its own predictor prefix and is decodable in isolation.
package adpcm

import (
	"fmt"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
)

// stepTable is the IMA ADPCM quantizer step size table, indexed by the
// 7-bit step index carried in State.Index.
var stepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// indexTable adjusts the quantizer step index per 4-bit code.
var indexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

// PrefixSize is the byte length of the per-chunk predictor prefix.
const PrefixSize = 4

// State holds the IMA ADPCM predictor: the last decoded/encoded sample and
// the current quantizer step index. A decoder builds a fresh State for each
// chunk from that chunk's prefix (ReadPrefix); an encoder may keep one State
// running across chunks. Nothing here persists automatically across chunks.
type State struct {
	ValPrev int16
	Index   int8
}

// ReadPrefix decodes a chunk's 4-byte predictor prefix (valprev:i16,
// index:i8, reserved:u8). The reserved byte is not validated; some
// encoders leave it non-zero.
func ReadPrefix(b []byte) (State, error) {
	if len(b) < PrefixSize {
		return State{}, smjpegerrors.NewIoError("adpcm.read_prefix", fmt.Errorf("need %d bytes, got %d", PrefixSize, len(b)))
	}
	valprev := int16(uint16(b[0])<<8 | uint16(b[1]))
	index := int8(b[2])
	if index < 0 || int(index) >= len(stepTable) {
		return State{}, smjpegerrors.NewUnsupportedError("adpcm.read_prefix", fmt.Errorf("index %d out of range", index))
	}
	return State{ValPrev: valprev, Index: index}, nil
}

// WritePrefix encodes a chunk's predictor prefix into b, which must be at
// least PrefixSize bytes.
func WritePrefix(b []byte, s State) {
	b[0] = byte(uint16(s.ValPrev) >> 8)
	b[1] = byte(uint16(s.ValPrev))
	b[2] = byte(s.Index)
	b[3] = 0
}

// Decode decodes nibbles (packed two per byte, high nibble first per the
// container's byte layout) into PCM samples, starting from state and
// mutating it in place so the caller can inspect the predictor's final
// value. It writes exactly 2*len(nibbles) samples into out, which must be
// at least that long.
func Decode(state *State, nibbles []byte, out []int16) {
	n := 0
	for _, b := range nibbles {
		out[n] = decodeNibble(state, (b>>4)&0x0F)
		n++
		out[n] = decodeNibble(state, b&0x0F)
		n++
	}
}

func decodeNibble(state *State, code byte) int16 {
	step := stepTable[state.Index]
	diff := step >> 3
	if code&4 != 0 {
		diff += step
	}
	if code&2 != 0 {
		diff += step >> 1
	}
	if code&1 != 0 {
		diff += step >> 2
	}
	valpred := int32(state.ValPrev)
	if code&8 != 0 {
		valpred -= diff
	} else {
		valpred += diff
	}
	valpred = clampSample(valpred)
	state.ValPrev = int16(valpred)

	index := int32(state.Index) + indexTable[code]
	state.Index = int8(clampIndex(index))

	return int16(valpred)
}

// Encode encodes PCM samples (must be an even count) into packed nibble
// bytes, starting from state and mutating it in place. Matching Decode, the
// first sample of each pair lands in the output byte's high nibble.
func Encode(state *State, samples []int16, out []byte) {
	for i := 0; i+1 < len(samples); i += 2 {
		hi := encodeNibble(state, samples[i])
		lo := encodeNibble(state, samples[i+1])
		out[i/2] = lo | (hi << 4)
	}
}

func encodeNibble(state *State, sample int16) byte {
	step := stepTable[state.Index]
	diffRaw := int32(sample) - int32(state.ValPrev)

	code := byte(0)
	if diffRaw < 0 {
		code = 8
		diffRaw = -diffRaw
	}

	diff := diffRaw
	var vpdiff int32 = step >> 3
	if diff >= step {
		code |= 4
		diff -= step
		vpdiff += step
	}
	step >>= 1
	if diff >= step {
		code |= 2
		diff -= step
		vpdiff += step
	}
	step >>= 1
	if diff >= step {
		code |= 1
		vpdiff += step
	}

	valpred := int32(state.ValPrev)
	if code&8 != 0 {
		valpred -= vpdiff
	} else {
		valpred += vpdiff
	}
	state.ValPrev = int16(clampSample(valpred))

	index := int32(state.Index) + indexTable[code]
	state.Index = int8(clampIndex(index))

	return code
}

func clampSample(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

func clampIndex(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > int32(len(stepTable)-1) {
		return int32(len(stepTable) - 1)
	}
	return v
}
