// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

import (
	"bytes"
)

// Buffer wraps bytes.Buffer with the little-endian field writers the
// GETSTATUS response assembly needs (§6).
type Buffer struct {
	bytes.Buffer
}

func NewBuffer(initSize int) *Buffer {
	b := &Buffer{}

	b.Grow(initSize)

	return b
}

// WriteUint24LE writes the low 24 bits of value as three little-endian
// bytes; used to assemble the GETSTATUS bwPollTimeout field (§6).
func (buf *Buffer) WriteUint24LE(value uint32) {
	buf.WriteByte(byte(value))
	buf.WriteByte(byte(value >> 8))
	buf.WriteByte(byte(value >> 16))
}

// putUint24BE encodes addr's low 24 bits into dst[0:3], big-endian, the
// wire format every SPI NOR command address uses (§6).
func putUint24BE(dst []byte, addr uint32) {
	dst[0] = byte(addr >> 16)
	dst[1] = byte(addr >> 8)
	dst[2] = byte(addr)
}
