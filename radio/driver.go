// Package radio defines the narrow contract a Class-A session engine needs
// from a physical LoRa/FSK radio. Modulation, IQ inversion at the bit level,
// CAD internals, and FIFO access are the driver's concern, not the engine's.
package radio

import (
	"context"
	"errors"
	"time"
)

// ErrHeaderDamaged is returned by ReadData when the radio reports a damaged
// header or missing CRC. Class-A downlinks are sent without a CRC, so a
// session engine treats this status as a successful read rather than an
// error.
var ErrHeaderDamaged = errors.New("radio: header damaged or missing crc")

// ScanResult is the outcome of a single channel-activity-detection poll.
type ScanResult int

// Possible outcomes of a channel scan.
const (
	NoActivity ScanResult = iota
	PreambleDetected
	LoRaDetected
	ScanError
)

// Driver is implemented by the caller and supplied to a Device. It is the
// sole owner boundary between the session engine and the radio hardware:
// the engine never holds the radio across two calls into Driver.
type Driver interface {
	// Transmit sends payload immediately and blocks until it is on air.
	Transmit(ctx context.Context, payload []byte) error

	// StartReceive arms the radio to receive a single packet.
	StartReceive(ctx context.Context) error

	// ReadData copies the most recently received packet into buf and
	// returns its length. It may return ErrHeaderDamaged.
	ReadData(buf []byte) (int, error)

	// PacketLength reports the length of the pending packet. If update is
	// true the driver re-reads the length from hardware first.
	PacketLength(update bool) int

	// StartChannelScan begins a CAD cycle looking for a preamble.
	StartChannelScan(ctx context.Context) error

	// ScanResult reports the outcome of the most recent CAD cycle.
	ScanResult() ScanResult

	// Standby idles the radio between operations.
	Standby() error

	SetFrequency(hz uint32) error
	SetDataRate(desc byte) error
	SetOutputPower(dBm int8) error
	SetSyncWord(word []byte) error
	SetPreambleLength(symbols uint16) error
	InvertIQ(invert bool) error
	SetEncoding(whitening bool) error
	SetDataShaping(gaussianBT1 bool) error

	// TimeOnAir estimates the airtime of a payload of the given length at
	// the driver's current settings.
	TimeOnAir(payloadLen int) time.Duration

	// OnPacketReceived registers cb to run in interrupt-equivalent context
	// when a packet finishes arriving. cb must do nothing but set a flag.
	OnPacketReceived(cb func())
	ClearPacketReceived()

	// OnChannelScan registers cb to run in interrupt-equivalent context
	// when a CAD cycle completes. cb must do nothing but set a flag.
	OnChannelScan(cb func())
	ClearChannelScan()
}
