package frame

import (
	"crypto/aes"
	"testing"

	"go.viam.com/test"

	"github.com/tinylora/classa/cryptocore"
)

// aesDecryptECB stands in for the join server's cryptographic engine, which
// (unlike the device's BlockCipher) has both AES directions available. The
// wire encoding of a Join-Accept is the AES decrypt of its plaintext, so
// that a device with only an encrypt primitive can undo it.
func aesDecryptECB(key cryptocore.Key, dst, src []byte) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	block.Decrypt(dst, src)
}

func TestEncodeJoinRequestLayout(t *testing.T) {
	var nwkKey cryptocore.Key
	copy(nwkKey[:], []byte("NETWORKROOTKEY01"))
	cipher := cryptocore.SoftwareCipher{}

	jr := JoinRequest{
		JoinEUI:  [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		DevEUI:   [8]byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18},
		DevNonce: 5,
	}

	buf := Encode(cipher, nwkKey, jr)
	test.That(t, len(buf), test.ShouldEqual, JoinRequestLen)
	test.That(t, buf[0], test.ShouldEqual, MHDR(MTypeJoinRequest))
	test.That(t, buf[1:9], test.ShouldResemble, jr.JoinEUI[:])
	test.That(t, buf[9:17], test.ShouldResemble, jr.DevEUI[:])
	test.That(t, buf[17], test.ShouldEqual, byte(5))
	test.That(t, buf[18], test.ShouldEqual, byte(0))

	test.That(t, cryptocore.VerifyMIC(cipher, nwkKey, buf), test.ShouldBeTrue)
}

func TestJoinAcceptRoundTripV10(t *testing.T) {
	var nwkKey cryptocore.Key
	copy(nwkKey[:], []byte("NETWORKROOTKEY01"))
	cipher := cryptocore.SoftwareCipher{}

	plain := make([]byte, 0, 16)
	plain = append(plain, 0x01, 0x02, 0x03) // JoinNonce
	plain = append(plain, 0x04, 0x05, 0x06) // HomeNetID
	plain = append(plain, 0xAA, 0xBB, 0xCC, 0xDD)
	plain = append(plain, 0x00) // DLSettings, rev 1.0
	plain = append(plain, 0x01) // RxDelay

	full := append([]byte{MHDR(MTypeJoinAccept)}, plain...)
	mic := cryptocore.ComputeMIC(cipher, nwkKey, full)
	plainWithMIC := append(plain, byte(mic), byte(mic>>8), byte(mic>>16), byte(mic>>24))

	raw := make([]byte, 17)
	raw[0] = MHDR(MTypeJoinAccept)
	body := raw[1:]
	for i := 0; i < len(body); i += 16 {
		aesDecryptECB(nwkKey, body[i:i+16], plainWithMIC[i:i+16])
	}

	ja, err := DecodeJoinAcceptV10(cipher, nwkKey, raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ja.DevAddr, test.ShouldEqual, uint32(0xDDCCBBAA))
	test.That(t, ja.RxDelaySeconds(), test.ShouldEqual, 1)
	test.That(t, ja.Rev1_1(), test.ShouldBeFalse)
	test.That(t, ja.HasCFList, test.ShouldBeFalse)
}

func TestJoinAcceptRejectsBadMIC(t *testing.T) {
	var nwkKey cryptocore.Key
	copy(nwkKey[:], []byte("NETWORKROOTKEY01"))
	cipher := cryptocore.SoftwareCipher{}

	raw := make([]byte, 17)
	raw[0] = MHDR(MTypeJoinAccept)
	_, err := DecodeJoinAcceptV10(cipher, nwkKey, raw)
	test.That(t, err, test.ShouldEqual, ErrMICMismatch)
}
