package frame

import (
	"testing"

	"go.viam.com/test"

	"github.com/tinylora/classa/cryptocore"
)

func TestEncodeDataUp10ThenVerify(t *testing.T) {
	var fNwkSIntKey, appSKey cryptocore.Key
	copy(fNwkSIntKey[:], []byte("NETWORKINTEGRITY"))
	copy(appSKey[:], []byte("APPLICATIONKEY01"))
	cipher := cryptocore.SoftwareCipher{}

	devAddr := uint32(0x04030201)
	fCnt := uint16(1)
	payload := []byte{0xCA, 0xFE}
	enc := cryptocore.CryptPayload(cipher, appSKey, cryptocore.Uplink, devAddr, uint32(fCnt), true, payload)

	wire, err := EncodeDataUp10(cipher, fNwkSIntKey, false, devAddr, fCnt, nil, 1, true, enc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, wire[0], test.ShouldEqual, MHDR(MTypeUnconfirmedUp))

	got := cryptocore.ComputeUplinkDownlinkMIC10(cipher, fNwkSIntKey, byte(cryptocore.Uplink), devAddr, uint32(fCnt), wire[:len(wire)-4])
	want := uint32(wire[len(wire)-4]) | uint32(wire[len(wire)-3])<<8 | uint32(wire[len(wire)-2])<<16 | uint32(wire[len(wire)-1])<<24
	test.That(t, got, test.ShouldEqual, want)
}

func TestDecodeDataDownParsesFOptsAndPayload(t *testing.T) {
	raw := []byte{
		MHDR(MTypeUnconfirmedDwn),
		0x01, 0x02, 0x03, 0x04, // DevAddr
		0x02,       // FCtrl: FOptsLen=2
		0x05, 0x00, // FCnt
		0xAA, 0xBB, // FOpts
		0x01,             // FPort
		0xDE, 0xAD, 0xBE, // FRMPayload
		0x00, 0x00, 0x00, 0x00, // MIC
	}

	df, err := DecodeDataDown(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, df.DevAddr, test.ShouldEqual, uint32(0x04030201))
	test.That(t, df.FOptsLen(), test.ShouldEqual, 2)
	test.That(t, df.FOpts, test.ShouldResemble, []byte{0xAA, 0xBB})
	test.That(t, df.HasFPort, test.ShouldBeTrue)
	test.That(t, df.FPort, test.ShouldEqual, byte(1))
	test.That(t, df.FRMPayload, test.ShouldResemble, []byte{0xDE, 0xAD, 0xBE})
}

func TestDecodeDataDownRejectsShortFrame(t *testing.T) {
	_, err := DecodeDataDown([]byte{0x60, 0x01})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVerifyMIC10RoundTrip(t *testing.T) {
	var fNwkSIntKey, appSKey cryptocore.Key
	copy(fNwkSIntKey[:], []byte("NETWORKINTEGRITY"))
	copy(appSKey[:], []byte("APPLICATIONKEY01"))
	cipher := cryptocore.SoftwareCipher{}

	devAddr := uint32(0xAABBCCDD)
	fCnt := uint16(3)
	payload := cryptocore.CryptPayload(cipher, appSKey, cryptocore.Downlink, devAddr, uint32(fCnt), true, []byte{0xBE, 0xEF})

	wire, err := EncodeDataUp10(cipher, fNwkSIntKey, false, devAddr, fCnt, nil, 1, true, payload)
	test.That(t, err, test.ShouldBeNil)
	// The uplink encoder's MIC is computed in the uplink direction, so
	// downlink verification rejects it as is.
	test.That(t, VerifyMIC10(cipher, fNwkSIntKey, wire, uint32(fCnt)), test.ShouldBeFalse)

	// Recomputed under the downlink direction, the MIC verifies.
	downMIC := cryptocore.ComputeUplinkDownlinkMIC10(cipher, fNwkSIntKey, byte(cryptocore.Downlink), devAddr, uint32(fCnt), wire[:len(wire)-4])
	wire[len(wire)-4], wire[len(wire)-3], wire[len(wire)-2], wire[len(wire)-1] = byte(downMIC), byte(downMIC>>8), byte(downMIC>>16), byte(downMIC>>24)
	test.That(t, VerifyMIC10(cipher, fNwkSIntKey, wire, uint32(fCnt)), test.ShouldBeTrue)
}
