package ring

import (
	"sync"
	"testing"
	"time"
)

func TestPopOnEmptyLeavesDstUntouched(t *testing.T) {
	b := New()
	dst := []byte{0xAA, 0xBB}
	n, ok := b.Pop(dst)
	if ok || n != 0 {
		t.Fatalf("expected (0,false) on empty ring, got (%d,%v)", n, ok)
	}
	if dst[0] != 0xAA || dst[1] != 0xBB {
		t.Fatalf("dst was mutated on empty pop: %v", dst)
	}
}

func TestPushPopSingleSlot(t *testing.T) {
	b := New()
	b.Push([]byte{1, 2, 3})
	dst := make([]byte, 8)
	n, ok := b.Pop(dst)
	if !ok || n != 3 {
		t.Fatalf("got (%d,%v), want (3,true)", n, ok)
	}
	if dst[0] != 1 || dst[1] != 2 || dst[2] != 3 {
		t.Fatalf("unexpected payload: %v", dst[:n])
	}
	if !b.Empty() {
		t.Fatal("expected empty after single pop")
	}
}

// TestFeedAcrossSlotsUsesEachSlotsOwnLength exercises the exact scenario the
// original decoder got wrong: requesting more bytes than a single slot
// holds, spanning multiple differently-sized slots. Each slot's length must
// be accounted using its own recorded length, not a neighboring slot's.
func TestFeedAcrossSlotsUsesEachSlotsOwnLength(t *testing.T) {
	b := New()
	b.Push([]byte{1, 2})          // slot 0: len 2
	b.Push([]byte{3, 4, 5, 6, 7}) // slot 1: len 5

	need := 7
	got := make([]byte, 0, need)
	for need > 0 {
		dst := make([]byte, need)
		n, ok := b.Pop(dst)
		if !ok {
			t.Fatalf("ring emptied before satisfying request, got %d so far", len(got))
		}
		got = append(got, dst[:n]...)
		need -= n
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d (full: %v)", i, got[i], want[i], got)
		}
	}
}

// TestPopWithSmallDstRetainsSlotRemainder exercises a dst shorter than the
// pushed payload: earlier revisions advanced past the whole slot regardless
// of how much fit in dst, silently discarding the remainder. The slot must
// stay put (and Occupancy must still count it) until fully drained.
func TestPopWithSmallDstRetainsSlotRemainder(t *testing.T) {
	b := New()
	b.Push([]byte{1, 2, 3, 4, 5})

	dst := make([]byte, 2)
	n, ok := b.Pop(dst)
	if !ok || n != 2 || dst[0] != 1 || dst[1] != 2 {
		t.Fatalf("first pop: got (%d,%v,%v), want (2,true,[1 2])", n, ok, dst)
	}
	if b.Empty() {
		t.Fatal("slot not fully drained yet; ring must not report empty")
	}
	if b.Occupancy() != 1 {
		t.Fatalf("occupancy = %d, want 1 (partially-read slot still counts)", b.Occupancy())
	}

	n, ok = b.Pop(dst)
	if !ok || n != 2 || dst[0] != 3 || dst[1] != 4 {
		t.Fatalf("second pop: got (%d,%v,%v), want (2,true,[3 4])", n, ok, dst)
	}

	n, ok = b.Pop(dst)
	if !ok || n != 1 || dst[0] != 5 {
		t.Fatalf("third pop: got (%d,%v,%v), want (1,true,[5 ...])", n, ok, dst)
	}
	if !b.Empty() {
		t.Fatal("expected slot fully drained and ring empty")
	}
}

func TestFullBlocksUntilDrained(t *testing.T) {
	b := New()
	for i := 0; i < Capacity; i++ {
		b.Push([]byte{byte(i)})
	}
	if !b.Full() {
		t.Fatal("expected ring full")
	}

	unblocked := make(chan struct{})
	go func() {
		b.Push([]byte{99})
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("Push returned before a slot was freed")
	case <-time.After(30 * time.Millisecond):
	}

	dst := make([]byte, 1)
	b.Pop(dst)

	select {
	case <-unblocked:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Push did not unblock after a slot was freed")
	}
}

func TestDisabledPushIsNoop(t *testing.T) {
	b := New()
	b.SetEnabled(false)
	b.Push([]byte{1, 2, 3})
	if !b.Empty() {
		t.Fatal("expected push on disabled buffer to be a no-op")
	}
}

func TestNoLossNoDupUnderConcurrentSPSC(t *testing.T) {
	b := New()
	const total = 500
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			b.Push([]byte{byte(i), byte(i >> 8)})
		}
	}()

	received := make([]int, 0, total)
	go func() {
		defer wg.Done()
		dst := make([]byte, 2)
		for len(received) < total {
			n, ok := b.Pop(dst)
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			if n != 2 {
				t.Errorf("unexpected short slot: %d", n)
			}
			received = append(received, int(dst[0])|int(dst[1])<<8)
		}
	}()

	wg.Wait()
	for i, v := range received {
		if v != i {
			t.Fatalf("order/dup/loss violation at %d: got %d", i, v)
		}
	}
}
