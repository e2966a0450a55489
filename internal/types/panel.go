package types

import (
	"fmt"
	"sort"
)

// Snapshot is one packed reading of the switch panel. Only the low 24 bits
// are significant: byte0<<16 | byte1<<8 | byte2.
type Snapshot uint32

// Has reports whether any bit of mask is set.
func (s Snapshot) Has(mask Snapshot) bool {
	return s&mask != 0
}

// Bit returns 1 if any bit of mask is set, else 0.
func (s Snapshot) Bit(mask Snapshot) uint8 {
	if s.Has(mask) {
		return 1
	}
	return 0
}

func (s Snapshot) String() string {
	return fmt.Sprintf("0x%06x", uint32(s))
}

// Toggle switches
const (
	Battery    Snapshot = 0x010000
	Alt        Snapshot = 0x020000
	Avionics   Snapshot = 0x040000
	FuelPump   Snapshot = 0x080000
	DeIce      Snapshot = 0x100000
	PitotHeat  Snapshot = 0x200000
	CowlClose  Snapshot = 0x400000
	PanelLight Snapshot = 0x800000
	Beacon     Snapshot = 0x000100
	NavLights  Snapshot = 0x000200
	Strobe     Snapshot = 0x000400
	Taxi       Snapshot = 0x000800
	Landing    Snapshot = 0x001000
)

// Gear lever. Moving the lever changes both bits.
const (
	GearUp   Snapshot = 0x000004
	GearDown Snapshot = 0x000008
	GearMask          = GearUp | GearDown
)

// Magneto rotary positions
const (
	MagOff   Snapshot = 0x002000
	MagRight Snapshot = 0x004000
	MagLeft  Snapshot = 0x008000
	MagBoth  Snapshot = 0x000001
	MagStart Snapshot = 0x000002
)

const (
	// SwitchMask covers every bit handled by the generic switch path.
	SwitchMask = Battery | Alt | Avionics | FuelPump | DeIce | PitotHeat |
		CowlClose | PanelLight | Beacon | NavLights | Strobe | Taxi | Landing |
		GearMask

	RotaryMask = MagOff | MagRight | MagLeft | MagBoth | MagStart
)

// MinSwitchBindings is the number of distinct switches a mapping must bind.
const MinSwitchBindings = 13

// NameTable maps device-side control names to their single-bit masks.
type NameTable struct {
	byName map[string]Snapshot
}

// NewNameTable builds the static table of the 13 toggle switches and the
// two gear directions.
func NewNameTable() *NameTable {
	return &NameTable{
		byName: map[string]Snapshot{
			"BATTERY":    Battery,
			"ALT":        Alt,
			"AVIONICS":   Avionics,
			"FUELPUMP":   FuelPump,
			"DEICE":      DeIce,
			"PITOTHEAT":  PitotHeat,
			"COWLCLOSE":  CowlClose,
			"PANELLIGHT": PanelLight,
			"BEACON":     Beacon,
			"NAVLIGHTS":  NavLights,
			"STROBE":     Strobe,
			"TAXI":       Taxi,
			"LANDING":    Landing,
			"GEARUP":     GearUp,
			"GEARDOWN":   GearDown,
		},
	}
}

// Lookup returns the bit mask for a device-side name.
func (t *NameTable) Lookup(name string) (Snapshot, bool) {
	mask, ok := t.byName[name]
	return mask, ok
}

// NameOf is the reverse lookup, used for status reporting.
func (t *NameTable) NameOf(mask Snapshot) (string, bool) {
	for name, m := range t.byName {
		if m == mask {
			return name, true
		}
	}
	return "", false
}

// Names returns all device-side names in sorted order.
func (t *NameTable) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (t *NameTable) Len() int {
	return len(t.byName)
}
