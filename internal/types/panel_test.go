package types

import (
	"math/bits"
	"testing"
)

func TestNameTableEntriesAreUniqueSingleBits(t *testing.T) {
	table := NewNameTable()

	if table.Len() != 15 {
		t.Fatalf("Expected 15 controls, got %d", table.Len())
	}

	seen := make(map[Snapshot]string)
	for _, name := range table.Names() {
		mask, ok := table.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) failed for a listed name", name)
		}
		if bits.OnesCount32(uint32(mask)) != 1 {
			t.Errorf("%s: expected a single set bit, got %s", name, mask)
		}
		if other, dup := seen[mask]; dup {
			t.Errorf("%s and %s share bit %s", name, other, mask)
		}
		seen[mask] = name

		if mask&SwitchMask == 0 {
			t.Errorf("%s (%s) is outside SwitchMask", name, mask)
		}
		if mask&RotaryMask != 0 {
			t.Errorf("%s (%s) overlaps RotaryMask", name, mask)
		}

		back, ok := table.NameOf(mask)
		if !ok || back != name {
			t.Errorf("NameOf(%s) = %q, want %q", mask, back, name)
		}
	}
}

func TestNameTableUnknownName(t *testing.T) {
	table := NewNameTable()
	if _, ok := table.Lookup("THROTTLE"); ok {
		t.Error("Expected THROTTLE to be unknown")
	}
	if _, ok := table.Lookup("battery"); ok {
		t.Error("Expected lookups to be case sensitive")
	}
}

func TestRotaryMaskHasFivePositions(t *testing.T) {
	if n := bits.OnesCount32(uint32(RotaryMask)); n != 5 {
		t.Errorf("Expected 5 rotary bits, got %d", n)
	}
	if SwitchMask&RotaryMask != 0 {
		t.Errorf("SwitchMask and RotaryMask overlap: %s", SwitchMask&RotaryMask)
	}
}

func TestSnapshotBit(t *testing.T) {
	s := Battery | MagBoth

	if s.Bit(Battery) != 1 {
		t.Error("Expected BATTERY bit to be 1")
	}
	if s.Bit(Alt) != 0 {
		t.Error("Expected ALT bit to be 0")
	}
	if got := s.String(); got != "0x010001" {
		t.Errorf("Expected 0x010001, got %s", got)
	}
}
