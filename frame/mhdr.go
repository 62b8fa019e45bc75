// Package frame implements the LoRaWAN Class-A wire codec: Join-Request,
// Join-Accept, and Data-Up/Data-Down framing and parsing.
package frame

import "fmt"

// MType is the LoRaWAN message type carried in the top three bits of MHDR.
type MType byte

// Message types relevant to a Class-A device.
const (
	MTypeJoinRequest    MType = 0x00
	MTypeJoinAccept     MType = 0x01
	MTypeUnconfirmedUp  MType = 0x02
	MTypeUnconfirmedDwn MType = 0x03
	MTypeConfirmedUp    MType = 0x04
	MTypeConfirmedDwn   MType = 0x05
	MTypeRejoinRequest  MType = 0x06
	MTypeProprietary    MType = 0x07
)

// MajorR1 is the major version carried in the two low bits of MHDR; only
// LoRaWAN R1 is defined.
const MajorR1 = 0x00

// MHDR packs an MType and major version into the single header byte
// prepended to every PHYPayload.
func MHDR(mt MType) byte {
	return byte(mt)<<5 | MajorR1
}

// ParseMHDR splits a header byte into its message type and major version.
func ParseMHDR(b byte) (MType, byte) {
	return MType(b >> 5), b & 0x03
}

// ErrShortFrame is returned whenever a buffer is too small to hold the
// field being parsed.
type ErrShortFrame struct {
	Want, Got int
}

func (e ErrShortFrame) Error() string {
	return fmt.Sprintf("frame: buffer too short: want at least %d bytes, got %d", e.Want, e.Got)
}
