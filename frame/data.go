package frame

import (
	"encoding/binary"
	"errors"

	"github.com/tinylora/classa/cryptocore"
)

// ErrInvalidPort is returned when an FPort value is outside the range the
// device is allowed to use for application uplinks.
var ErrInvalidPort = errors.New("frame: invalid FPort")

// MaxFOptsLen is the largest FOpts block a header can carry (its length is
// packed into 4 bits of FCtrl).
const MaxFOptsLen = 15

// DataFrame is the decoded fields of a Data-Up or Data-Down PHYPayload,
// with FOpts/FRMPayload still in their (possibly encrypted) wire form.
type DataFrame struct {
	MType     MType
	DevAddr   uint32
	FCtrl     byte
	FCnt      uint16
	FOpts     []byte
	FPort     byte
	HasFPort  bool
	FRMPayload []byte
}

// FOptsLen reports the FOpts length packed into the low 4 bits of FCtrl.
func (d DataFrame) FOptsLen() int {
	return int(d.FCtrl & 0x0F)
}

// EncodeDataUp10 builds and MICs a revision-1.0 uplink frame. payload is
// already encrypted (via cryptocore.CryptPayload) under the port-selected
// key; fOpts, if non-empty, is already encrypted under nwkSEncKey in
// zero-counter mode.
func EncodeDataUp10(cipher cryptocore.BlockCipher, fNwkSIntKey cryptocore.Key, confirmed bool, devAddr uint32, fCnt uint16, fOpts []byte, port byte, hasPort bool, payload []byte) ([]byte, error) {
	if len(fOpts) > MaxFOptsLen {
		return nil, errors.New("frame: FOpts too long")
	}
	mt := MTypeUnconfirmedUp
	if confirmed {
		mt = MTypeConfirmedUp
	}

	header := buildHeader(mt, devAddr, byte(len(fOpts)), fCnt, fOpts, port, hasPort, payload)
	mic := cryptocore.ComputeUplinkDownlinkMIC10(cipher, fNwkSIntKey, byte(cryptocore.Uplink), devAddr, uint32(fCnt), header)

	out := make([]byte, len(header)+4)
	copy(out, header)
	binary.LittleEndian.PutUint32(out[len(header):], mic)
	return out, nil
}

// EncodeDataUp11 builds and MICs a revision-1.1 uplink frame.
func EncodeDataUp11(
	cipher cryptocore.BlockCipher,
	fNwkSIntKey, sNwkSIntKey cryptocore.Key,
	confirmed bool,
	dataRate, chIndex byte,
	devAddr uint32, fCnt uint16,
	fOpts []byte,
	port byte, hasPort bool,
	payload []byte,
) ([]byte, error) {
	if len(fOpts) > MaxFOptsLen {
		return nil, errors.New("frame: FOpts too long")
	}
	mt := MTypeUnconfirmedUp
	if confirmed {
		mt = MTypeConfirmedUp
	}

	header := buildHeader(mt, devAddr, byte(len(fOpts)), fCnt, fOpts, port, hasPort, payload)
	mic := cryptocore.ComputeUplinkDownlinkMIC11(cipher, fNwkSIntKey, sNwkSIntKey, byte(cryptocore.Uplink), dataRate, chIndex, devAddr, uint32(fCnt), header)

	out := make([]byte, len(header)+4)
	copy(out, header)
	binary.LittleEndian.PutUint32(out[len(header):], mic)
	return out, nil
}

func buildHeader(mt MType, devAddr uint32, foptsLen byte, fCnt uint16, fOpts []byte, port byte, hasPort bool, payload []byte) []byte {
	size := 1 + 4 + 1 + 2 + len(fOpts)
	if hasPort {
		size += 1 + len(payload)
	}
	buf := make([]byte, size)
	buf[0] = MHDR(mt)
	binary.LittleEndian.PutUint32(buf[1:5], devAddr)
	buf[5] = foptsLen
	binary.LittleEndian.PutUint16(buf[6:8], fCnt)
	off := 8
	off += copy(buf[off:], fOpts)
	if hasPort {
		buf[off] = port
		off++
		copy(buf[off:], payload)
	}
	return buf
}

// DecodeDataDown splits a raw downlink PHYPayload into its header fields,
// leaving FOpts/FRMPayload undecrypted, and without verifying the MIC
// (callers must do so once fCnt is known, via VerifyMIC10 below).
func DecodeDataDown(raw []byte) (DataFrame, error) {
	const minLen = 1 + 4 + 1 + 2 + 4
	if len(raw) < minLen {
		return DataFrame{}, ErrShortFrame{Want: minLen, Got: len(raw)}
	}

	mt, _ := ParseMHDR(raw[0])
	if mt != MTypeUnconfirmedDwn && mt != MTypeConfirmedDwn {
		return DataFrame{}, ErrInvalidMType
	}

	df := DataFrame{
		MType:   mt,
		DevAddr: binary.LittleEndian.Uint32(raw[1:5]),
		FCtrl:   raw[5],
		FCnt:    binary.LittleEndian.Uint16(raw[6:8]),
	}

	foptsEnd := 8 + df.FOptsLen()
	if foptsEnd > len(raw)-4 {
		return DataFrame{}, ErrShortFrame{Want: foptsEnd + 4, Got: len(raw)}
	}
	df.FOpts = raw[8:foptsEnd]

	body := raw[foptsEnd : len(raw)-4]
	if len(body) > 0 {
		df.HasFPort = true
		df.FPort = body[0]
		df.FRMPayload = body[1:]
	}

	return df, nil
}

// VerifyMIC10 checks a decoded frame's MIC as a single CMAC over a plain B0
// block under the given key, given the full-resolution fCnt (the wire
// carries only the low 16 bits). This is also the correct shape for
// verifying a revision-1.1 downlink under sNwkSIntKey: only uplink MICs
// mix in the dataRate/chIndex B1 block (see ComputeUplinkDownlinkMIC11).
func VerifyMIC10(cipher cryptocore.BlockCipher, key cryptocore.Key, raw []byte, fCntFull uint32) bool {
	header := raw[:len(raw)-4]
	devAddr := binary.LittleEndian.Uint32(raw[1:5])
	want := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	got := cryptocore.ComputeUplinkDownlinkMIC10(cipher, key, byte(cryptocore.Downlink), devAddr, fCntFull, header)
	return got == want
}
