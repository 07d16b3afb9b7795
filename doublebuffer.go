// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

// DoubleBuffer holds the two 4 KiB pages the USB side fills and the flash
// writer drains (§3 "Double buffer", §4.C). It is the single piece of
// state shared between the control-transfer producer and the writer
// consumer; per §9's Open Question on `used` synchronization, this port
// targets the cooperative single-goroutine model the original ships with,
// so `used` is a plain int guarded only by the caller serializing
// Dispatch/Tick calls onto one goroutine (§5).
type DoubleBuffer struct {
	data [2][bufferSize]byte
	wr   int
	rd   int
	used int
}

// Reserve returns a pointer to the slot the producer should fill next.
func (b *DoubleBuffer) Reserve() *[bufferSize]byte {
	return &b.data[b.wr]
}

// Commit flips wr and increments used, making the just-filled slot
// available to the consumer.
func (b *DoubleBuffer) Commit() {
	b.wr ^= 1
	b.used++
}

// Peek returns the slot the consumer should read next, without releasing
// it.
func (b *DoubleBuffer) Peek() *[bufferSize]byte {
	return &b.data[b.rd]
}

// Release flips rd and decrements used, once the consumer has fully
// consumed the slot Peek returned.
func (b *DoubleBuffer) Release() {
	b.rd ^= 1
	b.used--
}

// Used reports the number of filled-but-unconsumed slots, 0..2.
func (b *DoubleBuffer) Used() int {
	return b.used
}

// HasRoom reports whether the producer may Reserve/Commit another slot.
func (b *DoubleBuffer) HasRoom() bool {
	return b.used < 2
}
