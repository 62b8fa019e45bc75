package frame

import (
	"encoding/binary"
	"errors"

	"github.com/tinylora/classa/cryptocore"
)

// JoinRequestLen is the fixed on-air length of a Join-Request.
const JoinRequestLen = 23

// JoinRequest is the OTAA join message a device sends.
type JoinRequest struct {
	JoinEUI  [8]byte
	DevEUI   [8]byte
	DevNonce uint16
}

// Encode serializes and MICs a Join-Request under nwkKey, per §4.4: MHDR |
// JoinEUI(8,LE) | DevEUI(8,LE) | DevNonce(2,LE) | MIC(4).
func Encode(cipher cryptocore.BlockCipher, nwkKey cryptocore.Key, jr JoinRequest) []byte {
	buf := make([]byte, JoinRequestLen)
	buf[0] = MHDR(MTypeJoinRequest)
	copy(buf[1:9], jr.JoinEUI[:])
	copy(buf[9:17], jr.DevEUI[:])
	binary.LittleEndian.PutUint16(buf[17:19], jr.DevNonce)

	mic := cryptocore.ComputeMIC(cipher, nwkKey, buf[:19])
	binary.LittleEndian.PutUint32(buf[19:23], mic)
	return buf
}

// ErrInvalidMType is returned when a frame's MHDR does not carry the
// expected message type.
var ErrInvalidMType = errors.New("frame: unexpected message type")

// ErrMICMismatch is returned when a computed MIC does not match the one
// carried on the wire.
var ErrMICMismatch = errors.New("frame: MIC mismatch")

// CFListType distinguishes the two CFList encodings a Join-Accept may
// carry.
type CFListType byte

// The two defined CFList encodings; only Frequencies is supported.
const (
	CFListFrequencies CFListType = 0x00
	CFListChannelMask CFListType = 0x01
)

// ErrUnsupportedCFList is returned when a Join-Accept carries a
// channel-mask-shaped CFList, which this codec does not interpret.
var ErrUnsupportedCFList = errors.New("frame: unsupported CFList encoding")

// JoinAccept is the decoded, decrypted, and MIC-verified server reply to a
// Join-Request.
type JoinAccept struct {
	JoinNonce  [3]byte
	HomeNetID  [3]byte
	DevAddr    uint32
	DLSettings byte
	RxDelay    byte
	CFList     [5]uint32 // channel frequencies in Hz; zero entries unused
	HasCFList  bool
}

// Rev1_1 reports whether DLSettings marks the join as revision 1.1.
func (ja JoinAccept) Rev1_1() bool {
	return ja.DLSettings&0x80 != 0
}

// RxDelaySeconds returns the RX1 delay in seconds, applying the "0 means 1s"
// rule.
func (ja JoinAccept) RxDelaySeconds() int {
	if ja.RxDelay == 0 {
		return 1
	}
	return int(ja.RxDelay)
}

// DecodeJoinAcceptV10 decrypts and validates a revision-1.0 Join-Accept.
// raw is the on-air PHYPayload including MHDR; rootKey is nwkKey.
func DecodeJoinAcceptV10(cipher cryptocore.BlockCipher, nwkKey cryptocore.Key, raw []byte) (JoinAccept, error) {
	plain, err := decryptBody(cipher, nwkKey, raw)
	if err != nil {
		return JoinAccept{}, err
	}

	mt, _ := ParseMHDR(raw[0])
	if mt != MTypeJoinAccept {
		return JoinAccept{}, ErrInvalidMType
	}

	full := append([]byte{raw[0]}, plain...)
	if !cryptocore.VerifyMIC(cipher, nwkKey, full) {
		return JoinAccept{}, ErrMICMismatch
	}

	return parseJoinAcceptBody(plain)
}

// DecodeJoinAcceptV11 decrypts and validates a revision-1.1 Join-Accept
// using the join-context nonce/EUI needed for the JSIntKey MIC prefix.
func DecodeJoinAcceptV11(
	cipher cryptocore.BlockCipher,
	nwkKey cryptocore.Key,
	jsIntKey cryptocore.Key,
	joinEUI [8]byte,
	devNonce uint16,
	raw []byte,
) (JoinAccept, error) {
	plain, err := decryptBody(cipher, nwkKey, raw)
	if err != nil {
		return JoinAccept{}, err
	}

	mt, _ := ParseMHDR(raw[0])
	if mt != MTypeJoinAccept {
		return JoinAccept{}, ErrInvalidMType
	}

	prefix := cryptocore.JoinAcceptMIC11Prefix(joinEUI, devNonce)
	body := append([]byte{raw[0]}, plain...)
	msg := append(prefix, body...)
	if !cryptocore.VerifyMIC(cipher, jsIntKey, msg) {
		return JoinAccept{}, ErrMICMismatch
	}

	return parseJoinAcceptBody(plain)
}

// decryptBody undoes the server's AES-ECB-encrypt-as-decryption trick:
// the on-air body (everything after MHDR) is put through the same block
// primitive in the encrypt direction to recover the plaintext.
func decryptBody(cipher cryptocore.BlockCipher, key cryptocore.Key, raw []byte) ([]byte, error) {
	if len(raw) != 17 && len(raw) != 33 {
		return nil, ErrShortFrame{Want: 17, Got: len(raw)}
	}
	body := raw[1:]
	plain := make([]byte, len(body))
	for i := 0; i < len(body); i += 16 {
		cipher.EncryptBlock(key, plain[i:i+16], body[i:i+16])
	}
	return plain, nil
}

func parseJoinAcceptBody(plain []byte) (JoinAccept, error) {
	var ja JoinAccept
	copy(ja.JoinNonce[:], plain[0:3])
	copy(ja.HomeNetID[:], plain[3:6])
	ja.DevAddr = binary.LittleEndian.Uint32(plain[6:10])
	ja.DLSettings = plain[10]
	ja.RxDelay = plain[11]

	rest := plain[12 : len(plain)-4] // strip trailing MIC
	if len(rest) == 16 {
		if CFListType(rest[15]) == CFListChannelMask {
			return JoinAccept{}, ErrUnsupportedCFList
		}
		ja.HasCFList = true
		for i := 0; i < 5; i++ {
			freq100Hz := uint32(rest[i*3]) | uint32(rest[i*3+1])<<8 | uint32(rest[i*3+2])<<16
			ja.CFList[i] = freq100Hz * 100
		}
	} else if len(rest) != 0 {
		return JoinAccept{}, ErrShortFrame{Want: 16, Got: len(rest)}
	}

	return ja, nil
}
