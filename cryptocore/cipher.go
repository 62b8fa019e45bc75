// Package cryptocore implements the LoRaWAN MIC, payload-cipher, and
// key-derivation building blocks on top of a pluggable AES-128 ECB
// primitive. The AES primitive itself is treated as an external
// collaborator (see BlockCipher); this package builds AES-CMAC and the
// LoRaWAN-shaped arithmetic on top of it.
package cryptocore

import (
	"crypto/aes"
	"fmt"
)

// Key is a 128-bit AES key.
type Key [16]byte

// BlockCipher is the narrow AES-128 ECB primitive the crypto core is built
// on. A firmware integrator with a hardware AES engine implements this
// directly; SoftwareCipher below is the reference implementation backed by
// the standard library.
type BlockCipher interface {
	// EncryptBlock encrypts exactly one 16-byte block under key, writing
	// the result into dst. src and dst may overlap exactly as
	// crypto/cipher.Block.Encrypt allows.
	EncryptBlock(key Key, dst, src []byte)
}

// SoftwareCipher is the reference BlockCipher, backed by the standard
// library's constant-time AES-128 implementation. It exists so the module
// is usable standalone; nothing above it needs to know it isn't hardware.
type SoftwareCipher struct{}

// EncryptBlock implements BlockCipher.
func (SoftwareCipher) EncryptBlock(key Key, dst, src []byte) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// key is always exactly 16 bytes, so aes.NewCipher cannot fail.
		panic(fmt.Sprintf("cryptocore: unexpected aes.NewCipher error: %v", err))
	}
	block.Encrypt(dst, src)
}
