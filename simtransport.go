// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

// MemTransport is an in-memory stand-in for the board's SPI controller
// driver, modeling the two NOR chips as plain byte slices. §1 treats the
// SPI transport as an external collaborator, not something this package
// owns — MemTransport exists so the writer, the flash driver and the DFU
// protocol machine can be exercised without real hardware, the same role
// a bench harness filled against a real probe.
type MemTransport struct {
	chips      map[ChipID][]byte
	writeEnabled bool
}

// NewMemTransport builds a simulator with sz bytes of flash per chip,
// initialized to the NOR "erased" value 0xFF.
func NewMemTransport(sz uint32) *MemTransport {
	m := &MemTransport{chips: make(map[ChipID][]byte)}
	for _, id := range []ChipID{ChipInternal, ChipCart} {
		buf := make([]byte, sz)
		for i := range buf {
			buf[i] = 0xFF
		}
		m.chips[id] = buf
	}
	return m
}

// Contents returns the live backing slice for id, for test assertions.
func (m *MemTransport) Contents(id ChipID) []byte {
	return m.chips[id]
}

func (m *MemTransport) Xfer(cs ChipID, chunks []Chunk) error {
	mem := m.chips[cs]

	if len(chunks) == 0 {
		return nil
	}

	cmd := chunks[0].Buffer
	opcode := cmd[0]

	switch opcode {
	case opWriteEnable:
		m.writeEnabled = true
		return nil

	case opReadStatus1:
		var sr byte
		if !m.writeEnabled {
			// real NOR parts self-clear WEL once the next command completes;
			// here plain reads never leave the part busy.
		}
		chunks[1].Buffer[0] = sr
		return nil

	case opRead:
		addr := get24BE(cmd[1:])
		copy(chunks[1].Buffer, mem[addr:])
		return nil

	case opPageProgram:
		addr := get24BE(cmd[1:])
		payload := chunks[1].Buffer
		for i, b := range payload {
			mem[addr+uint32(i)] &= b // a real NOR part can only clear bits when programming
		}
		m.writeEnabled = false
		return nil

	case opSectorErase4K, opBlockErase32K, opBlockErase64K:
		addr := get24BE(cmd[1:])
		size := eraseSizeFor(opcode)
		for i := uint32(0); i < size; i++ {
			mem[addr+i] = 0xFF
		}
		m.writeEnabled = false
		return nil

	default:
		return nil
	}
}

func eraseSizeFor(opcode byte) uint32 {
	switch opcode {
	case opBlockErase32K:
		return 32 * 1024
	case opBlockErase64K:
		return 64 * 1024
	default:
		return sectorSize4K
	}
}

func (m *MemTransport) XferVerify(cs ChipID, chunks []Chunk) (VerifyResult, error) {
	mem := m.chips[cs]

	cmd := chunks[0].Buffer
	addr := get24BE(cmd[1:])
	expected := chunks[1].Buffer
	actual := mem[addr : addr+uint32(len(expected))]

	var result VerifyResult
	for i := range expected {
		e, a := expected[i], actual[i]
		if (e & a) != e {
			result |= needsEraseOnly
		}
		if e != a {
			result |= NeedsWrite
		}
	}

	if chunks[1].Read {
		copy(chunks[1].Buffer, actual)
	}

	return result, nil
}
