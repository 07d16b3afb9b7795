// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

import "fmt"

// Zone is a (chip, start, end) triple selecting a region of SPI flash
// writable via a particular DFU alternate setting (§3 "Selected interface").
type Zone struct {
	Chip  ChipID
	Start uint32
	End   uint32 // exclusive
}

// defaultZones is the compile-time flash zone table indexed by alternate
// setting, shipped defaults from §6.
var defaultZones = []Zone{
	0: {ChipInternal, 0x00200000, 0x01000000},
	1: {ChipInternal, 0x00340000, 0x00380000},
	2: {ChipInternal, 0x00380000, 0x01000000},
	3: {ChipInternal, 0x00400000, 0x01000000},
	4: {ChipInternal, 0x00800000, 0x01000000},
	5: {ChipInternal, 0x00000000, 0x00200000},
	6: {ChipCart, 0x00000000, 0x00000100},
}

// zoneTable holds the flash zones a Core was constructed with, normally
// defaultZones but overridable for tests (smaller zones make boundary
// scenarios cheap to exercise) via WithZones.
type zoneTable struct {
	zones []Zone
}

func newZoneTable(zones []Zone) *zoneTable {
	if zones == nil {
		zones = defaultZones
	}
	return &zoneTable{zones: zones}
}

// lookup resolves an alternate setting to its zone via a plain
// table-driven, bounds-checked accessor.
func (t *zoneTable) lookup(alt uint8) (Zone, error) {
	if int(alt) >= len(t.zones) {
		return Zone{}, fmt.Errorf("alt setting %d has no configured flash zone", alt)
	}
	return t.zones[alt], nil
}

func (t *zoneTable) count() int {
	return len(t.zones)
}
