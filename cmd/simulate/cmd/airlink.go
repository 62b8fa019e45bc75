package cmd

import (
	"context"
	"crypto/aes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/tinylora/classa/cryptocore"
	"github.com/tinylora/classa/frame"
	"github.com/tinylora/classa/radio"
)

// networkServer plays the part of a join server and network server for the
// simulator: it knows the same root keys as the device under test, answers
// Join-Requests with a Join-Accept, and echoes an acknowledgement downlink
// for every uplink it receives. It exists so `simulate` can demonstrate a
// full OTAA handshake and data exchange without any real gateway.
type networkServer struct {
	mu sync.Mutex

	cipher    cryptocore.BlockCipher
	nwkKey    cryptocore.Key
	appKey    cryptocore.Key
	homeNetID [3]byte

	joinNonce uint32
	devAddr   uint32
	keys      cryptocore.SessionKeys
	joined    bool
	fCntDown  uint32

	logger logging.Logger
}

func newNetworkServer(nwkKey, appKey cryptocore.Key, logger logging.Logger) *networkServer {
	return &networkServer{
		cipher:    cryptocore.SoftwareCipher{},
		nwkKey:    nwkKey,
		appKey:    appKey,
		homeNetID: [3]byte{0x00, 0x00, 0x13},
		devAddr:   0x26011000,
		logger:    logger,
	}
}

// newJoinedNetworkServer builds a networkServer that already knows a
// device's session keys, for a `send` invocation running in a separate
// process from the `join` that established them.
func newJoinedNetworkServer(nwkKey, appKey cryptocore.Key, devAddr uint32, keys cryptocore.SessionKeys, fCntDown uint32, logger logging.Logger) *networkServer {
	n := newNetworkServer(nwkKey, appKey, logger)
	n.devAddr = devAddr
	n.keys = keys
	n.joined = true
	n.fCntDown = fCntDown
	return n
}

// handle inspects an over-the-air frame and returns the response the
// network side would transmit back, or nil if the frame calls for none.
func (n *networkServer) handle(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	mt, _ := frame.ParseMHDR(raw[0])
	switch mt {
	case frame.MTypeJoinRequest:
		return n.handleJoinRequest(raw)
	case frame.MTypeUnconfirmedUp, frame.MTypeConfirmedUp:
		return n.handleDataUp(raw)
	default:
		return nil
	}
}

func (n *networkServer) handleJoinRequest(raw []byte) []byte {
	if len(raw) != frame.JoinRequestLen {
		return nil
	}
	if !cryptocore.VerifyMIC(n.cipher, n.nwkKey, raw) {
		n.logger.Warn("simulate: join-request MIC mismatch, ignoring")
		return nil
	}
	devNonce := binary.LittleEndian.Uint16(raw[17:19])

	n.mu.Lock()
	n.joinNonce++
	joinNonce := n.joinNonce
	n.devAddr++
	devAddr := n.devAddr
	n.keys = cryptocore.DeriveSessionKeys10(n.cipher, n.nwkKey, joinNonceBytes(joinNonce), n.homeNetID, devNonce)
	n.joined = true
	n.fCntDown = 0
	n.mu.Unlock()

	n.logger.Infof("simulate: join-request accepted, assigning devAddr %#x", devAddr)
	return encodeJoinAccept(n.cipher, n.nwkKey, joinNonceBytes(joinNonce), n.homeNetID, devAddr, 0x00, 0x01)
}

func (n *networkServer) handleDataUp(raw []byte) []byte {
	const minLen = 1 + 4 + 1 + 2 + 4
	if len(raw) < minLen {
		return nil
	}
	devAddr := binary.LittleEndian.Uint32(raw[1:5])

	n.mu.Lock()
	joined := n.joined && devAddr == n.devAddr
	keys := n.keys
	n.mu.Unlock()
	if !joined {
		n.logger.Warn("simulate: data-up from unknown devAddr, ignoring")
		return nil
	}

	fctrl := raw[5]
	foptsLen := int(fctrl & 0x0F)
	fcnt := binary.LittleEndian.Uint16(raw[6:8])
	body := raw[8+foptsLen : len(raw)-4]
	if len(body) == 0 {
		return nil
	}
	fport := body[0]
	encPayload := body[1:]

	key := keys.NwkSEncKey
	if fport != 0 {
		key = keys.AppSKey
	}
	plain := cryptocore.CryptPayload(n.cipher, key, cryptocore.Uplink, devAddr, uint32(fcnt), true, encPayload)
	n.logger.Infof("simulate: uplink received, fPort %d, fCnt %d, payload %x", fport, fcnt, plain)

	n.mu.Lock()
	n.fCntDown++
	fCntDown := n.fCntDown
	n.mu.Unlock()

	ack := []byte("ack")
	encAck := cryptocore.CryptPayload(n.cipher, keys.AppSKey, cryptocore.Downlink, devAddr, uint32(fCntDown), true, ack)
	header := buildDownHeader(devAddr, uint16(fCntDown), fport, encAck)
	mic := cryptocore.ComputeUplinkDownlinkMIC10(n.cipher, keys.FNwkSIntKey, byte(cryptocore.Downlink), devAddr, uint32(fCntDown), header)
	wire := make([]byte, len(header)+4)
	copy(wire, header)
	binary.LittleEndian.PutUint32(wire[len(header):], mic)
	return wire
}

func joinNonceBytes(n uint32) [3]byte {
	return [3]byte{byte(n), byte(n >> 8), byte(n >> 16)}
}

func buildDownHeader(devAddr uint32, fCnt uint16, port byte, payload []byte) []byte {
	buf := make([]byte, 1+4+1+2+1+len(payload))
	buf[0] = frame.MHDR(frame.MTypeUnconfirmedDwn)
	binary.LittleEndian.PutUint32(buf[1:5], devAddr)
	buf[5] = 0
	binary.LittleEndian.PutUint16(buf[6:8], fCnt)
	buf[8] = port
	copy(buf[9:], payload)
	return buf
}

// encodeJoinAccept builds and encrypts a revision-1.0 Join-Accept the way a
// join server would, mirroring frame.DecodeJoinAcceptV10's expectations. A
// join server holds a full AES engine, unlike a device's encrypt-only
// BlockCipher, so it scrambles the body with AES decrypt directly: a device
// then recovers the plaintext with a single AES encrypt of what it received.
func encodeJoinAccept(cipher cryptocore.BlockCipher, nwkKey cryptocore.Key, joinNonce, homeNetID [3]byte, devAddr uint32, dlSettings, rxDelay byte) []byte {
	plain := make([]byte, 0, 16)
	plain = append(plain, joinNonce[:]...)
	plain = append(plain, homeNetID[:]...)
	addrBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(addrBuf, devAddr)
	plain = append(plain, addrBuf...)
	plain = append(plain, dlSettings, rxDelay)

	full := append([]byte{frame.MHDR(frame.MTypeJoinAccept)}, plain...)
	mic := cryptocore.ComputeMIC(cipher, nwkKey, full)
	plainWithMIC := append(plain, byte(mic), byte(mic>>8), byte(mic>>16), byte(mic>>24))

	block, err := aes.NewCipher(nwkKey[:])
	if err != nil {
		panic(err) // nwkKey is always exactly 16 bytes
	}

	raw := make([]byte, 17)
	raw[0] = frame.MHDR(frame.MTypeJoinAccept)
	body := raw[1:]
	for i := 0; i < len(body); i += 16 {
		block.Decrypt(body[i:i+16], plainWithMIC[i:i+16])
	}
	return raw
}

// airlinkRadio is a radio.Driver backed by an in-process networkServer
// instead of an antenna. Transmit hands the frame straight to the server
// and queues whatever it answers with for the next receive window.
type airlinkRadio struct {
	mu sync.Mutex

	server  *networkServer
	pending []byte
	hasPkt  bool

	onPacket func()
	onScan   func()

	freqHz   uint32
	dataRate byte
	logger   logging.Logger
}

func newAirlinkRadio(server *networkServer, logger logging.Logger) *airlinkRadio {
	return &airlinkRadio{server: server, logger: logger}
}

func (a *airlinkRadio) Transmit(ctx context.Context, payload []byte) error {
	a.logger.Infof("simulate: air <- device, %d bytes: %x", len(payload), payload)
	resp := a.server.handle(payload)
	a.mu.Lock()
	if resp != nil {
		a.pending = resp
		a.hasPkt = true
	}
	a.mu.Unlock()
	return nil
}

func (a *airlinkRadio) StartReceive(ctx context.Context) error {
	a.mu.Lock()
	fire := a.hasPkt && a.onPacket != nil
	cb := a.onPacket
	a.mu.Unlock()
	if fire {
		cb()
	}
	return nil
}

func (a *airlinkRadio) ReadData(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasPkt {
		return 0, errors.New("simulate: no packet queued")
	}
	n := copy(buf, a.pending)
	a.hasPkt = false
	return n, nil
}

func (a *airlinkRadio) PacketLength(update bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *airlinkRadio) StartChannelScan(ctx context.Context) error {
	a.mu.Lock()
	cb := a.onScan
	a.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (a *airlinkRadio) ScanResult() radio.ScanResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasPkt {
		return radio.PreambleDetected
	}
	return radio.NoActivity
}

func (a *airlinkRadio) Standby() error { return nil }

func (a *airlinkRadio) SetFrequency(hz uint32) error { a.freqHz = hz; return nil }
func (a *airlinkRadio) SetDataRate(desc byte) error  { a.dataRate = desc; return nil }
func (a *airlinkRadio) SetOutputPower(dBm int8) error          { return nil }
func (a *airlinkRadio) SetSyncWord(word []byte) error          { return nil }
func (a *airlinkRadio) SetPreambleLength(symbols uint16) error { return nil }
func (a *airlinkRadio) InvertIQ(invert bool) error             { return nil }
func (a *airlinkRadio) SetEncoding(whitening bool) error       { return nil }
func (a *airlinkRadio) SetDataShaping(gaussianBT1 bool) error  { return nil }

func (a *airlinkRadio) TimeOnAir(payloadLen int) time.Duration {
	return time.Duration(payloadLen) * time.Millisecond
}

func (a *airlinkRadio) OnPacketReceived(cb func()) { a.mu.Lock(); a.onPacket = cb; a.mu.Unlock() }
func (a *airlinkRadio) ClearPacketReceived()       { a.mu.Lock(); a.onPacket = nil; a.mu.Unlock() }
func (a *airlinkRadio) OnChannelScan(cb func())    { a.mu.Lock(); a.onScan = cb; a.mu.Unlock() }
func (a *airlinkRadio) ClearChannelScan()          { a.mu.Lock(); a.onScan = nil; a.mu.Unlock() }
