package cryptocore

import (
	"testing"

	"go.viam.com/test"
)

func TestDeriveSessionKeys10MirrorsNetworkKeys(t *testing.T) {
	var nwkKey Key
	copy(nwkKey[:], []byte("NETWORKROOTKEY01"))

	keys := DeriveSessionKeys10(SoftwareCipher{}, nwkKey, [3]byte{0x01, 0x02, 0x03}, [3]byte{0x04, 0x05, 0x06}, 7)

	test.That(t, keys.FNwkSIntKey, test.ShouldResemble, keys.SNwkSIntKey)
	test.That(t, keys.FNwkSIntKey, test.ShouldResemble, keys.NwkSEncKey)
	test.That(t, keys.AppSKey, test.ShouldNotResemble, keys.NwkSEncKey)

	// tag 0x02 selects AppSKey, matching the literal derivation block this
	// package builds.
	var block [blockSize]byte
	block[0] = tagAppSKey
	block[1], block[2], block[3] = 0x01, 0x02, 0x03
	block[4], block[5], block[6] = 0x04, 0x05, 0x06
	block[7] = 7
	var want Key
	SoftwareCipher{}.EncryptBlock(nwkKey, want[:], block[:])
	test.That(t, keys.AppSKey, test.ShouldResemble, want)
}

func TestDeriveSessionKeys11SplitsAppAndNetworkRoots(t *testing.T) {
	var nwkKey, appKey Key
	copy(nwkKey[:], []byte("NETWORKROOTKEY01"))
	copy(appKey[:], []byte("APPLICATIONROOT1"))

	keys := DeriveSessionKeys11(SoftwareCipher{}, nwkKey, appKey, [3]byte{1, 2, 3}, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 9)

	test.That(t, keys.FNwkSIntKey, test.ShouldNotResemble, keys.SNwkSIntKey)
	test.That(t, keys.SNwkSIntKey, test.ShouldNotResemble, keys.NwkSEncKey)
	test.That(t, keys.AppSKey, test.ShouldNotResemble, keys.FNwkSIntKey)
}

func TestDeriveJSIntKeyUsesTagSix(t *testing.T) {
	var nwkKey Key
	copy(nwkKey[:], []byte("NETWORKROOTKEY01"))
	devEUI := [8]byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}

	got := DeriveJSIntKey(SoftwareCipher{}, nwkKey, devEUI)

	var block [blockSize]byte
	block[0] = 0x06
	copy(block[1:9], devEUI[:])
	var want Key
	SoftwareCipher{}.EncryptBlock(nwkKey, want[:], block[:])
	test.That(t, got, test.ShouldResemble, want)
}
