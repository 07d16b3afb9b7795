// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

import (
	"bytes"
	"testing"
)

type countingReboot struct{ count int }

func (r *countingReboot) Reboot() { r.count++ }

func fillBuffer(w *Writer, b byte) {
	slot := w.buf.Reserve()
	for i := range slot {
		slot[i] = b
	}
	w.buf.Commit()
}

func runUntilIdle(t *testing.T, w *Writer, maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		if w.Idle() && w.buf.Used() == 0 {
			return
		}
		if err := w.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	t.Fatalf("writer did not reach idle within %d ticks", maxTicks)
}

func TestWriterProgramsEraseAndReleasesBuffer(t *testing.T) {
	xport := NewMemTransport(64 * 1024)
	flash := NewFlash(xport)
	buf := &DoubleBuffer{}
	boot := &countingReboot{}
	w := NewWriter(flash, buf, boot, Erase4K)
	w.Reset(0)

	// pre-program the target region with non-0xFF data so an erase is
	// required before the payload can be programmed.
	mem := xport.Contents(ChipInternal)
	for i := range mem[:sectorSize4K] {
		mem[i] = 0x00
	}

	fillBuffer(w, 0x42)
	runUntilIdle(t, w, 64)

	if boot.count != 0 {
		t.Fatalf("reboot hook invoked %d times, want 0", boot.count)
	}
	if w.AddrProg != sectorSize4K {
		t.Fatalf("AddrProg = %#x, want %#x", w.AddrProg, sectorSize4K)
	}

	want := bytes.Repeat([]byte{0x42}, sectorSize4K)
	if !bytes.Equal(mem[:sectorSize4K], want) {
		t.Fatal("flash contents after writer drain do not match the committed buffer")
	}
}

func TestWriterVerifyOnlyFastPath(t *testing.T) {
	xport := NewMemTransport(64 * 1024)
	it := &instrumentedTransport{Transport: xport}
	flash := NewFlash(it)
	buf := &DoubleBuffer{}
	boot := &countingReboot{}
	w := NewWriter(flash, buf, boot, Erase4K)
	w.Reset(0)

	mem := xport.Contents(ChipInternal)
	for i := range mem[:sectorSize4K] {
		mem[i] = 0x5A
	}

	fillBuffer(w, 0x5A)
	runUntilIdle(t, w, 64)

	if it.commandCount != 0 {
		t.Fatalf("commandCount = %d, want 0 (verify-only fast path, §8 scenario 6)", it.commandCount)
	}
}

func TestWriterRebootsOnRetryExhaustion(t *testing.T) {
	xport := &alwaysDiffersTransport{MemTransport: NewMemTransport(64 * 1024)}
	flash := NewFlash(xport)
	buf := &DoubleBuffer{}
	boot := &countingReboot{}
	w := NewWriter(flash, buf, boot, Erase4K)
	w.Reset(0)

	fillBuffer(w, 0x11)

	for i := 0; i < 64 && boot.count == 0; i++ {
		w.Tick()
	}

	if boot.count != 1 {
		t.Fatalf("reboot hook invoked %d times, want exactly 1", boot.count)
	}
	if buf.Used() != 0 {
		t.Fatalf("buf.Used() = %d after retry exhaustion, want 0 (slot released)", buf.Used())
	}
}

// alwaysDiffersTransport reports NeedsEraseWrite forever, modeling a
// write-protected or failing chip so the writer's retry bound is exercised.
type alwaysDiffersTransport struct {
	*MemTransport
}

func (a *alwaysDiffersTransport) XferVerify(cs ChipID, chunks []Chunk) (VerifyResult, error) {
	return NeedsEraseWrite, nil
}
