// Package classa implements a LoRaWAN Class-A end-device session engine:
// OTAA and ABP activation, uplink framing, and the two-window downlink
// receive sequence, on top of a pluggable radio driver, host clock, crypto
// primitive, and session store.
package classa

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/tinylora/classa/band"
	"github.com/tinylora/classa/cryptocore"
	"github.com/tinylora/classa/frame"
	"github.com/tinylora/classa/platform"
	"github.com/tinylora/classa/radio"
	"github.com/tinylora/classa/store"
)

// State is a Device's position in the Class-A session state machine.
type State int

// The states a Device passes through while joining or exchanging a frame.
const (
	StateIdle State = iota
	StateJoining
	StateJoined
	StateTransmitting
	StateWaitingRX1
	StateListening
	StateWaitingRX2
	StateListening2
)

const (
	rx2Guard        = 500 * time.Millisecond
	cadInnerBudget  = 3 * time.Second
	downlinkBudget  = 30 * time.Second
	pollInterval    = 5 * time.Millisecond
	joinAcceptSlack = 2 * time.Second

	rekeyIndCID  = 0x0F
	rekeyConfCID = 0x0F
)

// Device is a single Class-A end-device session engine.
type Device struct {
	radio  radio.Driver
	clock  platform.Clock
	store  store.Store
	band   band.Profile
	logger logging.Logger
	cipher cryptocore.BlockCipher

	state State

	devAddr     uint32
	fCntUp      uint32
	rev11       bool
	appSKey     cryptocore.Key
	fNwkSIntKey cryptocore.Key
	sNwkSIntKey cryptocore.Key
	nwkSEncKey  cryptocore.Key

	currentChannel int
	currentDR      band.DataRate
	rxDelayStart   time.Duration    // clock.Millis() at end of uplink airtime
	rxDelays       [2]time.Duration // RX1, RX2 delay, from the join-accept or ABP default

	availableChannelsFreq [5]uint32 // extra channel frequencies from a length-33 join-accept's CFList

	pendingMacCommand []byte

	packetReceived atomic.Bool
	scanFired      atomic.Bool
	onPacketCb     func()
	onScanCb       func()
}

// New constructs a Device bound to the given radio, clock, store, and
// regional band profile. It does not touch the radio or the store; call
// BeginOTAA or BeginABP to activate the session.
func New(r radio.Driver, clk platform.Clock, st store.Store, bandProfile band.Profile, logger logging.Logger) *Device {
	d := &Device{
		radio:  r,
		clock:  clk,
		store:  st,
		band:   bandProfile,
		logger: logger,
		cipher: cryptocore.SoftwareCipher{},
	}
	d.onPacketCb = func() { d.packetReceived.Store(true) }
	d.onScanCb = func() { d.scanFired.Store(true) }
	return d
}

// SetCipher overrides the AES-128 ECB primitive, for firmware integrators
// with a hardware AES engine.
func (d *Device) SetCipher(c cryptocore.BlockCipher) {
	d.cipher = c
}

// State reports the device's current position in the session state
// machine.
func (d *Device) State() State {
	return d.state
}

// Begin resumes a previously activated session from the store without
// touching the radio. It returns ErrNotJoined if the store's magic
// sentinel is absent, e.g. immediately after Wipe.
func (d *Device) Begin(ctx context.Context) error {
	sess, err := d.store.Load()
	if err != nil {
		return fmt.Errorf("classa: loading session: %w", err)
	}
	if !sess.Magic {
		return ErrNotJoined
	}
	d.loadSession(sess)
	d.state = StateJoined
	return nil
}

// Wipe destroys the persisted session and returns the device to Idle.
func (d *Device) Wipe(ctx context.Context) error {
	if err := d.store.Wipe(); err != nil {
		return fmt.Errorf("classa: wiping session: %w", err)
	}
	d.state = StateIdle
	return nil
}

// BeginABP activates the session directly from caller-supplied keys,
// skipping the join exchange entirely.
func (d *Device) BeginABP(ctx context.Context, addr uint32, nwkSKey, appSKey cryptocore.Key, fNwkSIntKey, sNwkSIntKey *cryptocore.Key) error {
	d.devAddr = addr
	d.appSKey = appSKey
	if fNwkSIntKey != nil && sNwkSIntKey != nil {
		d.rev11 = true
		d.fNwkSIntKey = *fNwkSIntKey
		d.sNwkSIntKey = *sNwkSIntKey
		d.nwkSEncKey = nwkSKey
	} else {
		d.rev11 = false
		d.fNwkSIntKey = nwkSKey
		d.sNwkSIntKey = nwkSKey
		d.nwkSEncKey = nwkSKey
	}
	d.fCntUp = 0
	d.currentChannel = 0
	d.currentDR = d.band.Backup.DataRate
	d.rxDelays = [2]time.Duration{
		time.Duration(d.band.ReceiveDelay1) * time.Millisecond,
		time.Duration(d.band.ReceiveDelay2) * time.Millisecond,
	}
	d.state = StateJoined
	d.logger.Info("classa: activated session via ABP")
	return nil
}

// BeginOTAA performs (or, if already joined and force is false, resumes) an
// over-the-air activation.
func (d *Device) BeginOTAA(ctx context.Context, joinEUI, devEUI [8]byte, nwkKey, appKey cryptocore.Key, force bool) error {
	sess, err := d.store.Load()
	if err != nil {
		return fmt.Errorf("classa: loading session: %w", err)
	}

	if sess.Magic && !force {
		d.loadSession(sess)
		d.state = StateJoined
		d.logger.Info("classa: resumed prior join from persisted session")
		return nil
	}

	d.state = StateJoining

	devNonce, err := d.store.IncrementDevNonce()
	if err != nil {
		return fmt.Errorf("classa: incrementing devNonce: %w", err)
	}

	joinDR := d.band.Spans[0].JoinDR
	freq, _, err := d.band.Channel(0)
	if err != nil {
		return fmt.Errorf("classa: resolving join channel: %w", err)
	}
	if err := d.configureRadio(freq, joinDR); err != nil {
		return err
	}

	jr := frame.JoinRequest{JoinEUI: joinEUI, DevEUI: devEUI, DevNonce: devNonce}
	payload := frame.Encode(d.cipher, nwkKey, jr)

	if err := d.radio.Transmit(ctx, payload); err != nil {
		return fmt.Errorf("classa: transmitting join-request: %w", err)
	}

	if err := d.radio.InvertIQ(true); err != nil {
		return fmt.Errorf("classa: inverting IQ for join-accept receive: %w", err)
	}
	d.packetReceived.Store(false)
	d.radio.OnPacketReceived(d.onPacketCb)
	defer d.radio.ClearPacketReceived()
	if err := d.radio.StartReceive(ctx); err != nil {
		return fmt.Errorf("classa: opening join-accept receive window: %w", err)
	}

	if err := d.waitForPacket(ctx, time.Duration(d.band.JoinAcceptDelay2)*time.Millisecond+joinAcceptSlack); err != nil {
		return err
	}

	buf := make([]byte, 256)
	n, err := d.radio.ReadData(buf)
	if err != nil && err != radio.ErrHeaderDamaged {
		return fmt.Errorf("classa: reading join-accept: %w", err)
	}
	raw := buf[:n]
	if err := d.radio.Standby(); err != nil {
		return fmt.Errorf("classa: idling radio after join-accept: %w", err)
	}

	if len(raw) != 17 && len(raw) != 33 {
		return fmt.Errorf("classa: join-accept length %d: %w", len(raw), ErrDownlinkMalformed)
	}

	// Try a revision-1.0 decode first: the two revisions verify the MIC
	// differently, and a 1.0 MIC mismatch is taken to mean a 1.1 accept,
	// which is then decoded again with JSIntKey.
	plainPeek, err := frame.DecodeJoinAcceptV10(d.cipher, nwkKey, raw)
	is11 := false
	switch {
	case err == frame.ErrMICMismatch:
		is11 = true
	case errors.Is(err, frame.ErrUnsupportedCFList):
		return fmt.Errorf("classa: decoding join-accept: %w: %w", ErrUnsupported, err)
	case err != nil:
		return fmt.Errorf("classa: decoding join-accept: %w: %w", ErrDownlinkMalformed, err)
	}

	var ja frame.JoinAccept
	if is11 {
		jsIntKey := cryptocore.DeriveJSIntKey(d.cipher, nwkKey, devEUI)
		ja, err = frame.DecodeJoinAcceptV11(d.cipher, nwkKey, jsIntKey, joinEUI, devNonce, raw)
		switch {
		case err == frame.ErrMICMismatch:
			return fmt.Errorf("classa: decoding v1.1 join-accept: %w: %w", ErrMICMismatch, err)
		case errors.Is(err, frame.ErrUnsupportedCFList):
			return fmt.Errorf("classa: decoding v1.1 join-accept: %w: %w", ErrUnsupported, err)
		case err != nil:
			return fmt.Errorf("classa: decoding v1.1 join-accept: %w: %w", ErrDownlinkMalformed, err)
		}
	} else {
		ja = plainPeek
	}

	var keys cryptocore.SessionKeys
	if ja.Rev1_1() {
		keys = cryptocore.DeriveSessionKeys11(d.cipher, nwkKey, appKey, ja.JoinNonce, joinEUI, devNonce)
	} else {
		keys = cryptocore.DeriveSessionKeys10(d.cipher, nwkKey, ja.JoinNonce, ja.HomeNetID, devNonce)
	}

	if err := d.store.SaveKeys(ja.Rev1_1(), keys); err != nil {
		return fmt.Errorf("classa: persisting keys: %w", err)
	}
	if err := d.store.SetDevAddr(ja.DevAddr); err != nil {
		return fmt.Errorf("classa: persisting devAddr: %w", err)
	}
	if err := d.store.ResetFCntUp(); err != nil {
		return fmt.Errorf("classa: resetting fCntUp: %w", err)
	}
	if err := d.store.CommitMagic(); err != nil {
		return fmt.Errorf("classa: committing session: %w", err)
	}

	d.loadSession(store.Session{
		Magic: true, DevAddr: ja.DevAddr, FCntUp: 0, Rev11: ja.Rev1_1(),
		AppSKey: keys.AppSKey, FNwkSIntKey: keys.FNwkSIntKey,
		SNwkSIntKey: keys.SNwkSIntKey, NwkSEncKey: keys.NwkSEncKey,
	})
	d.rxDelays[0] = time.Duration(ja.RxDelaySeconds()) * time.Second
	d.rxDelays[1] = d.rxDelays[0] + time.Second
	if ja.HasCFList {
		d.availableChannelsFreq = ja.CFList
	}
	d.state = StateJoined
	d.logger.Infof("classa: joined, devAddr %#x, rev11 %v", d.devAddr, d.rev11)

	if ja.Rev1_1() {
		if err := d.rekeyExchange(ctx); err != nil {
			return err
		}
	}

	return nil
}

// loadSession restores persisted session state. RxDelay itself is not part
// of the store schema, so a resumed session falls back to the band's
// default RX delays until the next fresh join reports its own.
func (d *Device) loadSession(s store.Session) {
	d.devAddr = s.DevAddr
	d.fCntUp = s.FCntUp
	d.rev11 = s.Rev11
	d.appSKey = s.AppSKey
	d.fNwkSIntKey = s.FNwkSIntKey
	d.sNwkSIntKey = s.SNwkSIntKey
	d.nwkSEncKey = s.NwkSEncKey
	d.rxDelays = [2]time.Duration{
		time.Duration(d.band.ReceiveDelay1) * time.Millisecond,
		time.Duration(d.band.ReceiveDelay2) * time.Millisecond,
	}
}

// rekeyExchange issues a RekeyInd MAC command and verifies the server's
// RekeyConf echoes the device's revision.
func (d *Device) rekeyExchange(ctx context.Context) error {
	d.pendingMacCommand = []byte{rekeyIndCID, 0x01}
	if err := d.Uplink(ctx, nil, 0); err != nil {
		return fmt.Errorf("classa: sending RekeyInd: %w", err)
	}

	down, err := d.Downlink(ctx)
	if err != nil {
		return fmt.Errorf("classa: awaiting RekeyConf: %w", err)
	}
	if len(down) < 2 || down[0] != rekeyConfCID || down[1] != 0x01 {
		return ErrInvalidRevision
	}
	return nil
}

// Uplink transmits an application payload (or, if payload is empty and a
// MAC command is queued, a MAC-command-only frame) on the current channel
// and data rate.
func (d *Device) Uplink(ctx context.Context, payload []byte, port byte) error {
	if d.state != StateJoined && d.state != StateTransmitting {
		return ErrNotJoined
	}
	if port > 0xDF {
		return ErrInvalidPort
	}

	maxLen, err := d.band.MaxPayload(d.currentDR)
	if err != nil {
		return fmt.Errorf("classa: resolving max payload: %w", err)
	}
	if len(payload) > maxLen {
		return ErrPacketTooLong
	}

	elapsed := d.clockMillisSince(d.rxDelayStart)
	if d.rxDelayStart != 0 && elapsed < d.rxDelays[1] {
		return ErrUplinkUnavailable
	}

	d.fCntUp++
	if err := d.store.SetFCntUp(d.fCntUp); err != nil {
		return fmt.Errorf("classa: persisting fCntUp: %w", err)
	}

	var fOpts []byte
	if len(d.pendingMacCommand) > 0 {
		fOpts = cryptocore.CryptPayload(d.cipher, d.nwkSEncKey, cryptocore.Uplink, d.devAddr, d.fCntUp, false, d.pendingMacCommand)
	}

	hasPort := len(payload) > 0 || port != 0
	key := d.appSKey
	if port == 0 {
		key = d.nwkSEncKey
	}
	var encPayload []byte
	if len(payload) > 0 {
		encPayload = cryptocore.CryptPayload(d.cipher, key, cryptocore.Uplink, d.devAddr, d.fCntUp, true, payload)
	}

	freq, _, err := d.band.Channel(d.currentChannel)
	if err != nil {
		return fmt.Errorf("classa: resolving uplink channel: %w", err)
	}

	var wire []byte
	if d.rev11 {
		wire, err = frame.EncodeDataUp11(d.cipher, d.fNwkSIntKey, d.sNwkSIntKey, false, byte(d.currentDR), byte(d.currentChannel), d.devAddr, uint16(d.fCntUp), fOpts, port, hasPort, encPayload)
	} else {
		wire, err = frame.EncodeDataUp10(d.cipher, d.fNwkSIntKey, false, d.devAddr, uint16(d.fCntUp), fOpts, port, hasPort, encPayload)
	}
	if err != nil {
		return fmt.Errorf("classa: encoding uplink: %w", err)
	}

	if err := d.configureRadio(freq, d.currentDR); err != nil {
		return err
	}

	d.state = StateTransmitting
	txStart := d.now()
	if err := d.radio.Transmit(ctx, wire); err != nil {
		return fmt.Errorf("classa: transmitting uplink: %w", err)
	}

	d.rxDelayStart = txStart + d.radio.TimeOnAir(len(wire))
	d.pendingMacCommand = nil
	d.state = StateJoined
	d.logger.Debugf("classa: uplink sent, fCnt %d, port %d", d.fCntUp, port)
	return nil
}

// clockMillisSince returns the elapsed duration since a prior clock.Millis
// reading, treating overflow of the underlying 32-bit counter as "a long
// time has passed" so callers never see a spuriously small duration.
func (d *Device) clockMillisSince(since time.Duration) time.Duration {
	now := d.now()
	if now < since {
		return time.Hour
	}
	return now - since
}

// now returns the host clock's monotonic reading as a time.Duration.
func (d *Device) now() time.Duration {
	return time.Duration(d.clock.Millis()) * time.Millisecond
}

// Downlink attempts to receive a downlink frame in the current RX1/RX2
// window pair, decrypting and returning either the FOpts payload (if the
// downlink carries MAC commands) or the FRMPayload.
func (d *Device) Downlink(ctx context.Context) ([]byte, error) {
	guard := d.rxDelays[1] + rx2Guard
	if d.clockMillisSince(d.rxDelayStart) > guard {
		return nil, ErrNoRxWindow
	}

	if err := d.radio.InvertIQ(true); err != nil {
		return nil, fmt.Errorf("classa: inverting IQ for downlink receive: %w", err)
	}
	defer d.radio.InvertIQ(false) //nolint:errcheck

	// Every exit returns the device to its prior state and the radio to the
	// uplink channel and data rate.
	prevState := d.state
	defer func() {
		d.state = prevState
		if freq, _, err := d.band.Channel(d.currentChannel); err == nil {
			d.configureRadio(freq, d.currentDR) //nolint:errcheck
		}
	}()

	windows := []struct {
		delay time.Duration
		freq  uint32
		dr    band.DataRate
		state State
	}{
		{d.rxDelays[0], 0, d.currentDR, StateWaitingRX1},
		{d.rxDelays[1], d.band.Backup.FrequencyHz, d.band.Backup.DataRate, StateWaitingRX2},
	}
	// RX1's frequency tracks the uplink channel.
	freq, _, err := d.band.Channel(d.currentChannel)
	if err == nil {
		windows[0].freq = freq
	}

	for i, w := range windows {
		d.state = w.state
		target := d.rxDelayStart + w.delay - rx2Guard
		if err := d.sleepUntil(ctx, target); err != nil {
			return nil, err
		}

		if err := d.configureRadio(w.freq, w.dr); err != nil {
			return nil, err
		}

		found, err := d.cadUntilPreamble(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			if i == 0 {
				continue
			}
			return nil, ErrRxTimeout
		}

		payload, err := d.receiveAndParse(ctx)
		if err != nil {
			return nil, err
		}
		return payload, nil
	}

	return nil, ErrRxTimeout
}

// sleepUntil cooperatively waits until the given clock deadline, or returns
// ctx.Err() if canceled first.
func (d *Device) sleepUntil(ctx context.Context, deadline time.Duration) error {
	for {
		now := d.now()
		if now >= deadline {
			return nil
		}
		remaining := deadline - now
		if remaining > pollInterval {
			remaining = pollInterval
		}
		if err := d.clock.Sleep(ctx, remaining); err != nil {
			return fmt.Errorf("classa: waiting for receive window: %w", err)
		}
	}
}

// cadUntilPreamble repeatedly triggers channel-activity detection until a
// preamble is seen or the per-window scan budget elapses.
func (d *Device) cadUntilPreamble(ctx context.Context) (bool, error) {
	d.radio.OnChannelScan(d.onScanCb)
	defer d.radio.ClearChannelScan()

	deadline := d.now() + cadInnerBudget
	for d.now() < deadline {
		d.scanFired.Store(false)
		if err := d.radio.StartChannelScan(ctx); err != nil {
			return false, fmt.Errorf("classa: starting channel scan: %w", err)
		}

		if err := d.waitFlag(ctx, &d.scanFired, pollInterval*4); err != nil {
			continue
		}

		switch d.radio.ScanResult() {
		case radio.PreambleDetected, radio.LoRaDetected:
			return true, nil
		case radio.ScanError:
			d.logger.Debug("classa: channel scan error, retrying")
		}
	}
	return false, nil
}

// receiveAndParse switches the radio from scanning to packet reception,
// waits for a full packet, and validates and decrypts it.
func (d *Device) receiveAndParse(ctx context.Context) ([]byte, error) {
	d.state = StateListening
	d.packetReceived.Store(false)
	d.radio.OnPacketReceived(d.onPacketCb)
	defer d.radio.ClearPacketReceived()
	if err := d.radio.StartReceive(ctx); err != nil {
		return nil, fmt.Errorf("classa: starting downlink receive: %w", err)
	}

	if err := d.waitFlag(ctx, &d.packetReceived, downlinkBudget); err != nil {
		return nil, ErrRxTimeout
	}

	buf := make([]byte, 256)
	n, err := d.radio.ReadData(buf)
	if err != nil && err != radio.ErrHeaderDamaged {
		return nil, fmt.Errorf("classa: reading downlink: %w", err)
	}
	raw := buf[:n]
	if err := d.radio.Standby(); err != nil {
		return nil, fmt.Errorf("classa: idling radio after downlink receive: %w", err)
	}

	df, err := frame.DecodeDataDown(raw)
	if err != nil {
		return nil, fmt.Errorf("classa: %w: %w", ErrDownlinkMalformed, err)
	}
	if df.DevAddr != d.devAddr {
		return nil, fmt.Errorf("classa: devAddr mismatch: %w", ErrDownlinkMalformed)
	}

	// A downlink's MIC is always a single CMAC over a plain B0 block,
	// even under revision 1.1: only uplinks mix in the B1/dataRate/chIndex
	// block and the fNwkSIntKey half. Revision 1.0 has no sNwkSIntKey of
	// its own, so the NwkSKey value fills it there (see
	// cryptocore.DeriveSessionKeys10 and BeginABP).
	fCntFull := uint32(df.FCnt)
	micOK := frame.VerifyMIC10(d.cipher, d.sNwkSIntKey, raw, fCntFull)
	if !micOK {
		d.logger.Warn("classa: downlink MIC mismatch")
		return nil, ErrMICMismatch
	}

	if len(df.FOpts) > 0 {
		return cryptocore.CryptPayload(d.cipher, d.nwkSEncKey, cryptocore.Downlink, d.devAddr, fCntFull, false, df.FOpts), nil
	}

	key := d.appSKey
	if df.HasFPort && df.FPort == 0 {
		key = d.nwkSEncKey
	}
	return cryptocore.CryptPayload(d.cipher, key, cryptocore.Downlink, d.devAddr, fCntFull, true, df.FRMPayload), nil
}

// waitFlag polls flag until it is true, the budget elapses, or ctx is
// canceled.
func (d *Device) waitFlag(ctx context.Context, flag *atomic.Bool, budget time.Duration) error {
	deadline := d.now() + budget
	for d.now() < deadline {
		if flag.Load() {
			return nil
		}
		if err := d.clock.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return ErrRxTimeout
}

// waitForPacket blocks until a received-packet event or the timeout
// elapses. The caller clears the flag before arming the receive, so an event
// fired while StartReceive runs is not lost.
func (d *Device) waitForPacket(ctx context.Context, timeout time.Duration) error {
	return d.waitFlag(ctx, &d.packetReceived, timeout)
}

func (d *Device) configureRadio(freqHz uint32, dr band.DataRate) error {
	if err := d.radio.SetFrequency(freqHz); err != nil {
		return fmt.Errorf("classa: setting frequency: %w", err)
	}
	if err := d.radio.SetDataRate(byte(dr)); err != nil {
		return fmt.Errorf("classa: setting data rate: %w", err)
	}
	if err := d.radio.SetOutputPower(d.band.MaxOutputPowerDBm); err != nil {
		return fmt.Errorf("classa: setting output power: %w", err)
	}
	if err := d.radio.SetSyncWord(d.band.SyncWord); err != nil {
		return fmt.Errorf("classa: setting sync word: %w", err)
	}
	if err := d.radio.SetPreambleLength(d.band.PreambleLength); err != nil {
		return fmt.Errorf("classa: setting preamble length: %w", err)
	}
	return nil
}
