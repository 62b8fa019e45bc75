package cryptocore

import (
	"testing"

	"go.viam.com/test"
)

func TestMICVerifyIsIdentityOfGenerate(t *testing.T) {
	var key Key
	copy(key[:], []byte("0123456789ABCDEF"))
	cipher := SoftwareCipher{}

	tt := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"short", []byte{0x01, 0x02, 0x03}},
		{"exactly one block", make([]byte, 16)},
		{"multi block", []byte("the quick brown fox jumps over the lazy dog")},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mic := ComputeMIC(cipher, key, tc.msg)
			framed := make([]byte, 0, len(tc.msg)+4)
			framed = append(framed, tc.msg...)
			framed = append(framed, byte(mic), byte(mic>>8), byte(mic>>16), byte(mic>>24))

			test.That(t, VerifyMIC(cipher, key, framed), test.ShouldBeTrue)

			framed[0] ^= 0x01
			if len(tc.msg) > 0 {
				test.That(t, VerifyMIC(cipher, key, framed), test.ShouldBeFalse)
			}
		})
	}
}

func TestVerifyMICRejectsShortBuffers(t *testing.T) {
	var key Key
	test.That(t, VerifyMIC(SoftwareCipher{}, key, []byte{0x01, 0x02}), test.ShouldBeFalse)
}

func TestUplinkDownlinkMIC10RoundTrips(t *testing.T) {
	var key Key
	copy(key[:], []byte("SESSIONKEY0123AB"))
	cipher := SoftwareCipher{}

	header := []byte{0x40, 0x01, 0x02, 0x03, 0x04, 0x00, 0x01, 0x00}
	mic := ComputeUplinkDownlinkMIC10(cipher, key, 0, 0x04030201, 1, header)

	b0 := dataMICBlock(0, 0, 0, 0x04030201, 1, len(header))
	want := ComputeMIC(cipher, key, append(append([]byte{}, b0[:]...), header...))
	test.That(t, mic, test.ShouldEqual, want)
}
