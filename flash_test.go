// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

import (
	"bytes"
	"testing"
)

func TestFlashReadProgramErase(t *testing.T) {
	xport := NewMemTransport(64 * 1024)
	f := NewFlash(xport)

	payload := bytes.Repeat([]byte{0x3C}, pageSize)

	if err := f.WriteEnable(); err != nil {
		t.Fatalf("WriteEnable: %v", err)
	}
	if err := f.PageProgram(payload, 0x1000); err != nil {
		t.Fatalf("PageProgram: %v", err)
	}

	got := make([]byte, pageSize)
	if err := f.Read(got, 0x1000); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read back %x, want %x", got[:4], payload[:4])
	}

	if err := f.SectorErase4K(0x1000); err != nil {
		t.Fatalf("SectorErase4K: %v", err)
	}

	erased := make([]byte, pageSize)
	if err := f.Read(erased, 0x1000); err != nil {
		t.Fatalf("Read after erase: %v", err)
	}
	for i, b := range erased {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02x after erase, want 0xff", i, b)
		}
	}
}

func TestPageProgramRejectsCrossingPageBoundary(t *testing.T) {
	xport := NewMemTransport(64 * 1024)
	f := NewFlash(xport)

	src := make([]byte, pageSize)
	if err := f.PageProgram(src, 1); err == nil {
		t.Fatal("expected error for a program spanning two pages, got nil")
	}
}

func TestPageProgramRejectsOversizeSource(t *testing.T) {
	xport := NewMemTransport(64 * 1024)
	f := NewFlash(xport)

	src := make([]byte, pageSize+1)
	if err := f.PageProgram(src, 0); err == nil {
		t.Fatal("expected error for a source longer than one page, got nil")
	}
}

func TestVerifyReportsEraseAndWriteNeeded(t *testing.T) {
	xport := NewMemTransport(64 * 1024)
	f := NewFlash(xport)

	// A byte needing an erase (some target 1-bit currently read back 0)
	// always also needs a write for that same byte (e != a), so the raw
	// accumulator can never actually produce the degenerate erase-only code
	// (§9's Open Question); this exercises the ordinary erase+write path.
	mem := xport.Contents(ChipInternal)
	for i := range mem[:sectorSize4K] {
		mem[i] = 0x00
	}

	src := bytes.Repeat([]byte{0xFF}, sectorSize4K)
	result, err := f.Verify(src, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result != NeedsEraseWrite {
		t.Fatalf("Verify() = %d, want NeedsEraseWrite (code 1 must never surface)", result)
	}
}

func TestChipSelectSwitchesActiveChip(t *testing.T) {
	xport := NewMemTransport(256)
	f := NewFlash(xport)

	if f.Selected() != ChipInternal {
		t.Fatalf("default selected chip = %v, want internal", f.Selected())
	}

	f.ChipSelect(ChipCart)
	if f.Selected() != ChipCart {
		t.Fatalf("Selected() = %v after ChipSelect(cart), want cart", f.Selected())
	}

	payload := []byte{0x11, 0x22}
	if err := f.WriteEnable(); err != nil {
		t.Fatalf("WriteEnable: %v", err)
	}
	if err := f.PageProgram(payload, 0); err != nil {
		t.Fatalf("PageProgram: %v", err)
	}

	if xport.Contents(ChipInternal)[0] == 0x11 {
		t.Fatal("program against the cart chip leaked into the internal chip")
	}
	if xport.Contents(ChipCart)[0] != 0x11 {
		t.Fatal("program against the cart chip did not land")
	}
}
