package cryptocore

import (
	"encoding/hex"
	"testing"

	"go.viam.com/test"
)

// Test vectors from RFC 4493 §4, under the 128-bit key
// 2b7e151628aed2a6abf7158809cf4f3c.
func TestCMACRFC4493Vectors(t *testing.T) {
	var key Key
	copy(key[:], mustHex("2b7e151628aed2a6abf7158809cf4f3c"))

	tt := []struct {
		name string
		msg  string
		want string
	}{
		{"empty", "", "bb1d6929e95937287fa37d129b756746"},
		{"16 bytes", "6bc1bee22e409f96e93d7e117393172a", "070a16b46b4d4144f79bdd9dd04a287c"},
		{
			"40 bytes",
			"6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e51" +
				"30c81c46a35ce411",
			"dfa66747de9ae63030ca32611497c827",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := cmac(SoftwareCipher{}, key, mustHex(tc.msg))
			test.That(t, hex.EncodeToString(got[:]), test.ShouldEqual, tc.want)
		})
	}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
