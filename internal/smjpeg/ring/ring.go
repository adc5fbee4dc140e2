// Package ring implements the fixed-capacity single-producer/single-consumer
// byte-slot ring that decouples chunk demuxing from audio playback. The
// demux/scheduler goroutine is the sole producer; the audio-sink callback
// (driven by whatever output device is in use) is the sole consumer. The
// only state either side shares is this buffer and the enabled flag — the
// consumer never reaches back into playback.Movie state, per the audio-sink
// isolation the design favors.
package ring

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Capacity is the fixed number of slots in the ring.
const Capacity = 32

// SlotSize is the maximum payload size a single slot can hold. Push stores
// only the first SlotSize bytes of longer data and drops the rest, so
// callers split oversized chunks upstream before pushing.
const SlotSize = 4096

// waitPoll is how long Push sleeps between full-buffer retries, mirroring
// the reference decoder's polling wait.
const waitPoll = 10 * time.Millisecond

// Buffer is a fixed-capacity SPSC ring of byte slots. Use New to obtain an
// enabled, empty buffer; the zero value is valid but starts disabled.
type Buffer struct {
	slots [Capacity][SlotSize]byte
	lens  [Capacity]int

	write   int // touched only by the producer
	read    int // touched only by the consumer
	readOff int // bytes already delivered from the slot at read, consumer-only

	// used is the single synchronization point between producer and
	// consumer: the producer increments it only after a slot's contents
	// are fully written, and the consumer decrements it only after a
	// slot's contents are fully consumed. Every other field access is
	// confined to one side, so this counter alone establishes the
	// happens-before edges acquire/release would otherwise need.
	used atomic.Int32

	enabled     atomic.Bool
	fullLogOnce rate.Sometimes

	// onFull is invoked, at most once per short burst, to let a caller log
	// that the producer is stalled waiting for the consumer to drain.
	onFull func()
}

// New returns a ready-to-use, enabled Buffer.
func New() *Buffer {
	b := &Buffer{fullLogOnce: rate.Sometimes{Interval: time.Second}}
	b.enabled.Store(true)
	return b
}

// SetEnabled toggles whether Push will accept data. A disabled buffer causes
// Push to return immediately without blocking or copying, which is how a
// track gets silently dropped after a decode error marks it unsupported.
func (b *Buffer) SetEnabled(v bool) { b.enabled.Store(v) }

// Enabled reports whether the buffer currently accepts pushes.
func (b *Buffer) Enabled() bool { return b.enabled.Load() }

// Full reports whether the ring currently holds Capacity slots.
func (b *Buffer) Full() bool { return b.used.Load() >= Capacity }

// Empty reports whether the ring currently holds no slots.
func (b *Buffer) Empty() bool { return b.used.Load() == 0 }

// Occupancy returns the number of filled slots, for metrics/logging.
func (b *Buffer) Occupancy() int { return int(b.used.Load()) }

// SetFullHook installs a callback invoked (at a throttled rate) whenever
// Push must wait for a free slot. Intended for the playback logger; nil
// disables the hook.
func (b *Buffer) SetFullHook(f func()) { b.onFull = f }

// Push copies data into the next free slot, blocking (polling every 10ms)
// while the ring is full and the buffer remains enabled. If the buffer is
// disabled it returns immediately without copying. data must not exceed
// SlotSize.
func (b *Buffer) Push(data []byte) {
	if !b.enabled.Load() {
		return
	}
	for b.Full() {
		if !b.enabled.Load() {
			return
		}
		b.fullLogOnce.Do(func() {
			if b.onFull != nil {
				b.onFull()
			}
		})
		time.Sleep(waitPoll)
	}
	n := copy(b.slots[b.write][:], data)
	b.lens[b.write] = n
	b.write = (b.write + 1) % Capacity
	b.used.Add(1)
}

// Pop copies as much of the oldest filled slot's remaining bytes into dst as
// fit and reports how many bytes were copied. It never blocks: if the ring
// is empty it leaves dst untouched and returns (0, false). A partial read
// (len(dst) shorter than the slot's remaining bytes) leaves the unread
// remainder in place — the read index and used count only advance once a
// slot has been fully drained across one or more Pop calls, so no data is
// discarded when a caller's buffer is smaller than a pushed chunk.
func (b *Buffer) Pop(dst []byte) (int, bool) {
	if b.Empty() {
		return 0, false
	}
	slotLen := b.lens[b.read]
	remaining := b.slots[b.read][b.readOff:slotLen]
	n := copy(dst, remaining)
	b.readOff += n
	if b.readOff >= slotLen {
		b.readOff = 0
		b.read = (b.read + 1) % Capacity
		b.used.Add(-1)
	}
	return n, true
}

// Drain blocks until the ring is empty or the deadline passes, polling at
// the same interval Push uses. Used by Stop to flush pending audio before
// tearing down the output device.
func (b *Buffer) Drain(deadline time.Duration) {
	elapsed := time.Duration(0)
	for !b.Empty() && elapsed < deadline {
		time.Sleep(waitPoll)
		elapsed += waitPoll
	}
}
