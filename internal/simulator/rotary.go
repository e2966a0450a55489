package simulator

import "github.com/fgpanels/switchpanel/internal/types"

type Position string

const (
	PositionNone    Position = "NONE"
	PositionOff     Position = "MAGOFF"
	PositionRight   Position = "MAGR"
	PositionLeft    Position = "MAGL"
	PositionBoth    Position = "MAGBOTH"
	PositionStart   Position = "MAGSTART"
	PositionInvalid Position = "INVALID"
)

type rotaryPosition struct {
	mask     types.Snapshot
	position Position
	code     uint8
}

// rotaryTable lists the magneto selector positions in scan order. Code is
// the action value the simulator expects for the magnetos command.
var rotaryTable = []rotaryPosition{
	{types.MagOff, PositionOff, 0},
	{types.MagRight, PositionRight, 1},
	{types.MagLeft, PositionLeft, 2},
	{types.MagBoth, PositionBoth, 3},
	{types.MagStart, PositionStart, 4},
}

// rotaryCode returns the command code for a single active rotary bit.
func rotaryCode(key types.Snapshot) (uint8, bool) {
	for _, p := range rotaryTable {
		if p.mask == key {
			return p.code, true
		}
	}
	return 0, false
}

// PositionOf names a rotary key.
func PositionOf(key types.Snapshot) Position {
	if key == 0 {
		return PositionNone
	}
	for _, p := range rotaryTable {
		if p.mask == key {
			return p.position
		}
	}
	return PositionInvalid
}
