// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

// memset fills a[:size] with v; used to pad a short DNLOAD data phase's
// tail with 0xFF before it reaches the double buffer (§3 "Double buffer").
func memset(a []uint8, size int, v uint8) {
	for i := 0; i < size; i++ {
		a[i] = v
	}
}

// get24BE decodes a 24-bit big-endian address, the wire format every SPI
// NOR command address uses (§6).
func get24BE(buffer []byte) uint32 {
	return uint32(buffer[0])<<16 | uint32(buffer[1])<<8 | uint32(buffer[2])
}
