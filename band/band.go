// Package band holds read-only regional frequency-plan data: channel
// layouts, data-rate tables, and RX2/join-accept defaults. It carries no
// device state; a Device instance points at one Profile value for its
// entire lifetime.
package band

import "fmt"

// DataRate is a bit-packed data-rate descriptor: bits 0-1 select
// bandwidth, bits 4-6 select a spreading-factor offset (SF = 6 + offset),
// and bit 7 marks the band's FSK rate, which ignores the other bits.
type DataRate byte

// Bandwidth codes packed into DataRate bits 0-1.
const (
	BW125 DataRate = 0
	BW250 DataRate = 1
	BW500 DataRate = 2
)

const (
	fskFlag   = 0x80
	sfOffsetMask = 0x07
	sfOffsetShift = 4
)

// NewLoRaDataRate packs a LoRa bandwidth and spreading factor into a
// DataRate descriptor.
func NewLoRaDataRate(bw DataRate, sf int) DataRate {
	offset := byte(sf - 6)
	return DataRate(byte(bw)&0x03 | (offset&sfOffsetMask)<<sfOffsetShift)
}

// NewFSKDataRate returns the descriptor for the band's fixed FSK rate.
func NewFSKDataRate() DataRate {
	return DataRate(fskFlag)
}

// IsFSK reports whether the descriptor selects the FSK rate.
func (d DataRate) IsFSK() bool {
	return d&fskFlag != 0
}

// Bandwidth returns the LoRa bandwidth code; meaningless for FSK.
func (d DataRate) Bandwidth() DataRate {
	return d & 0x03
}

// SpreadFactor returns the LoRa spreading factor; meaningless for FSK.
func (d DataRate) SpreadFactor() int {
	return 6 + int((d>>sfOffsetShift)&sfOffsetMask)
}

// BandwidthHz returns the LoRa channel bandwidth in Hz.
func (d DataRate) BandwidthHz() uint32 {
	switch d.Bandwidth() {
	case BW250:
		return 250000
	case BW500:
		return 500000
	default:
		return 125000
	}
}

// ChannelSpan is a contiguous run of uplink channels sharing a frequency
// step and a data-rate table, mirroring how the regional plans lay out
// their upstream channel blocks.
type ChannelSpan struct {
	StartHz  uint32
	StepHz   uint32
	Count    int
	DataRate []DataRate // indexed by DR
	JoinDR   DataRate
}

// FrequencyOf returns the transmit frequency of the given channel within
// the span.
func (s ChannelSpan) FrequencyOf(channel int) uint32 {
	return s.StartHz + uint32(channel)*s.StepHz
}

// Backup describes the fixed RX2/join-accept-window-2 channel.
type Backup struct {
	FrequencyHz uint32
	DataRate    DataRate
}

// CFListMode distinguishes how a Join-Accept's optional channel list is
// interpreted.
type CFListMode int

// The two CFList encodings; a profile only needs to declare which one its
// region uses.
const (
	CFListFrequencyList CFListMode = iota
	CFListChannelMask
)

// FSKParams describes a band's single FSK channel, present only on plans
// that define one.
type FSKParams struct {
	FrequencyHz    uint32
	SyncWord       []byte
	PreambleLength uint16
}

// Profile is a complete, read-only regional frequency plan.
type Profile struct {
	Name              string
	Spans             []ChannelSpan
	Backup            Backup
	CFListMode        CFListMode
	MaxOutputPowerDBm int8
	SyncWord          []byte // LoRa sync word, public network by default
	PreambleLength    uint16 // LoRa preamble length, in symbols
	PayloadLenMax     map[DataRate]int
	FSK               *FSKParams
	JoinAcceptDelay1  uint32 // ms
	JoinAcceptDelay2  uint32 // ms
	ReceiveDelay1     uint32 // ms
	ReceiveDelay2     uint32 // ms
}

// ErrUnknownChannel is returned when a logical channel index falls outside
// every span the profile declares.
var ErrUnknownChannel = fmt.Errorf("band: channel index out of range")

// Channel resolves a logical channel index by walking the profile's spans
// in order, summing their counts, exactly as the regional plans lay
// consecutive channel blocks end to end.
func (p Profile) Channel(index int) (freqHz uint32, dr []DataRate, err error) {
	base := 0
	for _, span := range p.Spans {
		if index < base+span.Count {
			return span.FrequencyOf(index - base), span.DataRate, nil
		}
		base += span.Count
	}
	return 0, nil, ErrUnknownChannel
}

// NumChannels returns the total number of uplink channels across all
// spans.
func (p Profile) NumChannels() int {
	n := 0
	for _, span := range p.Spans {
		n += span.Count
	}
	return n
}

// MaxPayload returns the maximum FRMPayload size for a given data rate,
// or an error if the profile has no entry for it.
func (p Profile) MaxPayload(dr DataRate) (int, error) {
	n, ok := p.PayloadLenMax[dr]
	if !ok {
		return 0, fmt.Errorf("band: %s: no payload limit for data rate %#x", p.Name, byte(dr))
	}
	return n, nil
}
