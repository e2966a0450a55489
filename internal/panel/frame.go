package panel

import "github.com/fgpanels/switchpanel/internal/types"

// FrameSize is the report length read per call. Only the first three bytes
// carry switch data; the fourth is padding some hidapi backends require.
const FrameSize = 4

// MinFrameBytes is the shortest read that counts as new data.
const MinFrameBytes = 3

// Gear LED feature report values. RED and GREEN together show yellow.
const (
	LEDNoseGreen  byte = 0x01
	LEDLeftGreen  byte = 0x02
	LEDRightGreen byte = 0x04
	LEDNoseRed    byte = 0x08
	LEDLeftRed    byte = 0x10
	LEDRightRed   byte = 0x20
	LEDAllOff     byte = 0x00
)

// Pack packs the first three bytes of a frame into a snapshot. ok is false
// when n is too short to carry data.
func Pack(buf []byte, n int) (snapshot types.Snapshot, ok bool) {
	if n < MinFrameBytes || len(buf) < MinFrameBytes {
		return 0, false
	}
	return types.Snapshot(uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])), true
}

// Unpack is the inverse of Pack, producing a full padded frame. Used by the
// panel emulator pipe and tests.
func Unpack(snapshot types.Snapshot) [FrameSize]byte {
	return [FrameSize]byte{
		byte(snapshot >> 16),
		byte(snapshot >> 8),
		byte(snapshot),
		0,
	}
}
