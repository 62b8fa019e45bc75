package classa

import (
	"context"
	"sync"
	"time"

	"github.com/tinylora/classa/radio"
)

// mockClock is a platform.Clock a test can advance deterministically
// instead of sleeping in real time.
type mockClock struct {
	mu     sync.Mutex
	millis uint32
}

func (c *mockClock) Millis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

func (c *mockClock) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.mu.Lock()
	c.millis += uint32(d.Milliseconds())
	if c.millis == 0 && d > 0 {
		c.millis = 1
	}
	c.mu.Unlock()
	return nil
}

func (c *mockClock) advance(d time.Duration) {
	c.mu.Lock()
	c.millis += uint32(d.Milliseconds())
	c.mu.Unlock()
}

// mockRadio is a radio.Driver double that hands back a scripted sequence
// of packets, one per StartReceive, and reports channel scans as an
// immediate preamble.
type mockRadio struct {
	mu sync.Mutex

	transmitted   [][]byte
	nextPackets   [][]byte
	nextErr       error
	scanResult    radio.ScanResult
	onPacket      func()
	onScan        func()
	freq          uint32
	dr            byte
	invertIQCalls []bool
}

func newMockRadio() *mockRadio {
	return &mockRadio{scanResult: radio.PreambleDetected}
}

func (r *mockRadio) Transmit(ctx context.Context, payload []byte) error {
	cp := append([]byte{}, payload...)
	r.transmitted = append(r.transmitted, cp)
	return nil
}

func (r *mockRadio) StartReceive(ctx context.Context) error {
	if len(r.nextPackets) > 0 {
		if r.onPacket != nil {
			r.onPacket()
		}
	}
	return nil
}

func (r *mockRadio) ReadData(buf []byte) (int, error) {
	if len(r.nextPackets) == 0 {
		return 0, r.nextErr
	}
	pkt := r.nextPackets[0]
	r.nextPackets = r.nextPackets[1:]
	n := copy(buf, pkt)
	return n, nil
}

func (r *mockRadio) PacketLength(update bool) int { return 0 }

func (r *mockRadio) StartChannelScan(ctx context.Context) error {
	if r.onScan != nil {
		r.onScan()
	}
	return nil
}

func (r *mockRadio) ScanResult() radio.ScanResult { return r.scanResult }

func (r *mockRadio) Standby() error { return nil }

func (r *mockRadio) SetFrequency(hz uint32) error { r.freq = hz; return nil }
func (r *mockRadio) SetDataRate(desc byte) error  { r.dr = desc; return nil }
func (r *mockRadio) SetOutputPower(dBm int8) error { return nil }
func (r *mockRadio) SetSyncWord(word []byte) error { return nil }
func (r *mockRadio) SetPreambleLength(symbols uint16) error { return nil }
func (r *mockRadio) InvertIQ(invert bool) error {
	r.invertIQCalls = append(r.invertIQCalls, invert)
	return nil
}
func (r *mockRadio) SetEncoding(whitening bool) error      { return nil }
func (r *mockRadio) SetDataShaping(gaussianBT1 bool) error { return nil }

func (r *mockRadio) TimeOnAir(payloadLen int) time.Duration { return time.Millisecond }

func (r *mockRadio) OnPacketReceived(cb func()) { r.onPacket = cb }
func (r *mockRadio) ClearPacketReceived()       { r.onPacket = nil }
func (r *mockRadio) OnChannelScan(cb func())    { r.onScan = cb }
func (r *mockRadio) ClearChannelScan()          { r.onScan = nil }
