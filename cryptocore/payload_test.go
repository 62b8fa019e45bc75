package cryptocore

import (
	"bytes"
	"testing"

	"go.viam.com/test"
)

func TestCryptPayloadIsInvolutive(t *testing.T) {
	var key Key
	copy(key[:], []byte("APPLICATIONKEY01"))
	cipher := SoftwareCipher{}

	tt := []struct {
		name    string
		dir     Direction
		counter bool
		data    []byte
	}{
		{"uplink short", Uplink, true, []byte{0xCA, 0xFE}},
		{"uplink block-aligned", Uplink, true, bytes.Repeat([]byte{0x42}, 32)},
		{"downlink odd length", Downlink, true, bytes.Repeat([]byte{0x07}, 17)},
		{"fopts zero counter", Uplink, false, []byte{0x02, 0x05}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			enc := CryptPayload(cipher, key, tc.dir, 0x11223344, 42, tc.counter, tc.data)
			test.That(t, len(enc), test.ShouldEqual, len(tc.data))

			dec := CryptPayload(cipher, key, tc.dir, 0x11223344, 42, tc.counter, enc)
			test.That(t, dec, test.ShouldResemble, tc.data)
		})
	}
}

func TestCryptPayloadDiffersByDirection(t *testing.T) {
	var key Key
	copy(key[:], []byte("APPLICATIONKEY01"))
	cipher := SoftwareCipher{}
	data := []byte{0x01, 0x02, 0x03, 0x04}

	up := CryptPayload(cipher, key, Uplink, 1, 1, true, data)
	down := CryptPayload(cipher, key, Downlink, 1, 1, true, data)
	test.That(t, up, test.ShouldNotResemble, down)
}
