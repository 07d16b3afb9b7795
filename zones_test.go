// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dfu

import "testing"

func TestDefaultZonesMatchShippedTable(t *testing.T) {
	tests := []struct {
		alt   uint8
		chip  ChipID
		start uint32
		end   uint32
	}{
		{0, ChipInternal, 0x00200000, 0x01000000},
		{1, ChipInternal, 0x00340000, 0x00380000},
		{2, ChipInternal, 0x00380000, 0x01000000},
		{3, ChipInternal, 0x00400000, 0x01000000},
		{4, ChipInternal, 0x00800000, 0x01000000},
		{5, ChipInternal, 0x00000000, 0x00200000},
		{6, ChipCart, 0x00000000, 0x00000100},
	}

	table := newZoneTable(nil)

	if table.count() != len(tests) {
		t.Fatalf("count() = %d, want %d", table.count(), len(tests))
	}

	for _, tt := range tests {
		zone, err := table.lookup(tt.alt)
		if err != nil {
			t.Fatalf("lookup(%d): %v", tt.alt, err)
		}
		if zone.Chip != tt.chip || zone.Start != tt.start || zone.End != tt.end {
			t.Fatalf("lookup(%d) = %+v, want {%v %#x %#x}", tt.alt, zone, tt.chip, tt.start, tt.end)
		}
	}
}

func TestZoneLookupOutOfRange(t *testing.T) {
	table := newZoneTable(nil)

	if _, err := table.lookup(uint8(table.count())); err == nil {
		t.Fatal("expected an error for an alt setting past the end of the table")
	}
}

func TestZoneTableOverride(t *testing.T) {
	custom := []Zone{{ChipInternal, 0, 4096}}
	table := newZoneTable(custom)

	if table.count() != 1 {
		t.Fatalf("count() = %d, want 1", table.count())
	}

	zone, err := table.lookup(0)
	if err != nil {
		t.Fatalf("lookup(0): %v", err)
	}
	if zone.End != 4096 {
		t.Fatalf("zone.End = %#x, want 0x1000", zone.End)
	}
}
