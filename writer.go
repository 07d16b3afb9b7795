// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the board's flash writer task;
// see §4.D for the exact cooperative algorithm.

package dfu

import (
	"github.com/boljen/go-bitmap"
)

// Granularity is the compile-time erase size choice (§4.D "Sector choice").
type Granularity uint32

const (
	Erase4K  Granularity = sectorSize4K
	Erase32K Granularity = 32 * 1024
	Erase64K Granularity = 64 * 1024
)

// writer feature flags, built once at construction from the chosen
// Granularity, the same shape as a capability bitmap assembled from a
// probe's firmware tier.
const (
	flagLargeErase = iota // granularity > 4 KiB; reported by RequiresZoneAlignment, SetInterface does not check zone alignment
	flagCount
)

type writerOp uint8

const (
	opIdle writerOp = iota
	opErase
	opProgram
)

// Writer is the cooperative flash-writer task (§4.D): one Tick performs at
// most one SPI operation.
type Writer struct {
	flash *Flash
	buf   *DoubleBuffer
	boot  RebootHook

	granularity Granularity
	flags       bitmap.Bitmap

	op      writerOp
	opOfs   uint32
	opLen   uint32
	retry   int
	should  VerifyResult // classification from the last ERASE-phase verify, reused by every PROGRAM-phase tick until the next re-verify

	AddrProg  uint32
	AddrErase uint32
}

// NewWriter builds a Writer targeting flash, consuming buf,
// invoking boot on fatal retry exhaustion (§7). granularity defaults to
// Erase4K when zero.
func NewWriter(flash *Flash, buf *DoubleBuffer, boot RebootHook, granularity Granularity) *Writer {
	if granularity == 0 {
		granularity = Erase4K
	}

	flags := bitmap.New(flagCount)
	if granularity != Erase4K {
		flags.Set(flagLargeErase, true)
	}

	return &Writer{
		flash:       flash,
		buf:         buf,
		boot:        boot,
		granularity: granularity,
		flags:       flags,
		retry:       retryBound,
	}
}

// Reset repositions the writer's cursors to addr, called from SetInterface
// (§4.E) when the host selects a new alt setting / flash zone.
func (w *Writer) Reset(addr uint32) {
	w.op = opIdle
	w.opOfs = 0
	w.opLen = 0
	w.retry = retryBound
	w.AddrProg = addr
	w.AddrErase = addr
}

// RequiresZoneAlignment reports whether the configured erase granularity
// demands the active zone be aligned to it (§4.D "larger erase is only
// legal when the zone is aligned").
func (w *Writer) RequiresZoneAlignment() bool {
	return w.flags.Get(flagLargeErase)
}

func (w *Writer) eraseOpcode() byte {
	switch w.granularity {
	case Erase32K:
		return opBlockErase32K
	case Erase64K:
		return opBlockErase64K
	default:
		return opSectorErase4K
	}
}

func (w *Writer) issueErase(addr uint32) error {
	switch w.granularity {
	case Erase32K:
		return w.flash.BlockErase32K(addr)
	case Erase64K:
		return w.flash.BlockErase64K(addr)
	default:
		return w.flash.SectorErase4K(addr)
	}
}

// Tick performs at most one SPI operation: it pops a buffer, verifies the
// target region, erases if required, re-verifies/programs, retries up to
// retryBound, and advances AddrProg on success (§4.D).
func (w *Writer) Tick() error {
	if w.op == opIdle {
		if w.buf.Used() == 0 {
			return nil
		}
		// retry is NOT reset here: it persists across the whole lifetime of
		// one buffer, including the IDLE round-trip a completed programming
		// pass takes to force a re-verify (§9 "retry decrements on each
		// erase attempt and on each programming-pass completion"). It is
		// only refilled by NewWriter/Reset (a fresh buffer's first attempt)
		// and by the PROGRAM "verify already matches" release below.
		w.op = opErase
		w.opLen = bufferSize
		w.opOfs = 0
	} else {
		busy, err := w.flash.Busy()
		if err != nil {
			return err
		}
		if busy {
			return nil
		}
	}

	if w.retry == 0 {
		addr := w.AddrProg
		w.op = opIdle
		w.buf.Release()
		logger.Errorf("flash writer exhausted retries at 0x%08x, rebooting", addr)
		w.boot.Reboot()
		return errExhausted(addr)
	}

	slot := w.buf.Peek()

	if w.op == opErase {
		var err error
		w.should, err = w.flash.Verify(slot[:], w.AddrProg)
		if err != nil {
			return err
		}

		if w.should&needsEraseOnly == 0 {
			w.AddrErase = w.AddrProg + uint32(w.granularity)
			w.op = opProgram
		} else {
			w.retry--
			w.AddrErase = w.AddrProg
			if err := w.flash.WriteEnable(); err != nil {
				return err
			}
			if err := w.issueErase(w.AddrErase); err != nil {
				return err
			}
			w.AddrErase += uint32(w.granularity)
			return nil
		}
	}

	// PROGRAM reuses w.should across every tick of a programming pass: it is
	// only refreshed by the next ERASE-phase verify, once op_ofs==op_len
	// sends the writer back through opIdle to re-enter.
	if w.op == opProgram {
		if w.should&NeedsWrite == 0 {
			w.retry = retryBound
			w.AddrProg += w.opLen
			w.buf.Release()
			w.op = opIdle
			return nil
		}

		if w.opOfs == w.opLen {
			w.retry--
			w.opLen = bufferSize
			w.opOfs = 0
			w.op = opIdle
			return nil
		}

		remaining := w.opLen - w.opOfs
		pageRoom := uint32(pageSize) - ((w.AddrProg + w.opOfs) & (pageSize - 1))
		l := remaining
		if pageRoom < l {
			l = pageRoom
		}

		if err := w.flash.WriteEnable(); err != nil {
			return err
		}
		if err := w.flash.PageProgram(slot[w.opOfs:w.opOfs+l], w.AddrProg+w.opOfs); err != nil {
			return err
		}
		w.opOfs += l
	}

	return nil
}

// Idle reports whether the writer has no in-flight buffer.
func (w *Writer) Idle() bool {
	return w.op == opIdle
}

// Drain pumps Tick until the double buffer is empty, the synchronous
// shortcut GETSTATUS takes from dfuMANIFEST_SYNC (§4.E).
func (w *Writer) Drain() error {
	for w.buf.Used() > 0 || !w.Idle() {
		if err := w.Tick(); err != nil {
			return err
		}
	}
	return nil
}
