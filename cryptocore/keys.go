package cryptocore

// Key-derivation tags, shared by the 1.0 and 1.1 schedules and matching the
// LoRaWAN 1.1 specification's assignment (the 1.0.3 schedule uses only the
// first two).
const (
	tagNwkSKey      = 0x01
	tagAppSKey      = 0x02
	tagSNwkSIntKey  = 0x03
	tagNwkSEncKey   = 0x04
	tagJSIntKey     = 0x06
	joinAcceptReqID = 0xFF
)

// SessionKeys holds the four keys a successful join produces.
type SessionKeys struct {
	AppSKey     Key
	FNwkSIntKey Key
	SNwkSIntKey Key
	NwkSEncKey  Key
}

// DeriveSessionKeys10 implements the LoRaWAN 1.0.3 key schedule (§4.3): both
// AppSKey and NwkSKey are derived under nwkKey, and the derived NwkSKey
// value is mirrored into all three network-key roles.
//
// The derivation block follows the specification's own field packing —
// joinNonce and homeNetID each in their own 3-byte field — rather than the
// reference firmware's offset reuse (see design notes).
func DeriveSessionKeys10(cipher BlockCipher, nwkKey Key, joinNonce [3]byte, homeNetID [3]byte, devNonce uint16) SessionKeys {
	nwkSKey := deriveKey10(cipher, nwkKey, tagNwkSKey, joinNonce, homeNetID, devNonce)
	appSKey := deriveKey10(cipher, nwkKey, tagAppSKey, joinNonce, homeNetID, devNonce)
	return SessionKeys{
		AppSKey:     appSKey,
		FNwkSIntKey: nwkSKey,
		SNwkSIntKey: nwkSKey,
		NwkSEncKey:  nwkSKey,
	}
}

func deriveKey10(cipher BlockCipher, key Key, tag byte, joinNonce, homeNetID [3]byte, devNonce uint16) Key {
	var block [blockSize]byte
	block[0] = tag
	copy(block[1:4], joinNonce[:])
	copy(block[4:7], homeNetID[:])
	block[7] = byte(devNonce)
	block[8] = byte(devNonce >> 8)
	// block[9:16] left zero.

	var out Key
	cipher.EncryptBlock(key, out[:], block[:])
	return out
}

// DeriveSessionKeys11 implements the LoRaWAN 1.1 key schedule (§4.3):
// AppSKey is derived under appKey; the three network keys are independently
// derived under nwkKey.
func DeriveSessionKeys11(cipher BlockCipher, nwkKey, appKey Key, joinNonce [3]byte, joinEUI [8]byte, devNonce uint16) SessionKeys {
	return SessionKeys{
		AppSKey:     deriveKey11(cipher, appKey, tagAppSKey, joinNonce, joinEUI, devNonce),
		FNwkSIntKey: deriveKey11(cipher, nwkKey, tagNwkSKey, joinNonce, joinEUI, devNonce),
		SNwkSIntKey: deriveKey11(cipher, nwkKey, tagSNwkSIntKey, joinNonce, joinEUI, devNonce),
		NwkSEncKey:  deriveKey11(cipher, nwkKey, tagNwkSEncKey, joinNonce, joinEUI, devNonce),
	}
}

func deriveKey11(cipher BlockCipher, key Key, tag byte, joinNonce [3]byte, joinEUI [8]byte, devNonce uint16) Key {
	var block [blockSize]byte
	block[0] = tag
	copy(block[1:4], joinNonce[:])
	copy(block[4:12], joinEUI[:])
	block[12] = byte(devNonce)
	block[13] = byte(devNonce >> 8)
	// block[14:16] left zero.

	var out Key
	cipher.EncryptBlock(key, out[:], block[:])
	return out
}

// DeriveJSIntKey derives the revision-1.1 join-accept integrity key, used
// once to verify a join-accept and safe to discard afterward.
func DeriveJSIntKey(cipher BlockCipher, nwkKey Key, devEUI [8]byte) Key {
	var block [blockSize]byte
	block[0] = tagJSIntKey
	copy(block[1:9], devEUI[:])
	// block[9:16] left zero.

	var out Key
	cipher.EncryptBlock(nwkKey, out[:], block[:])
	return out
}

// JoinAcceptMIC11Prefix builds the prepended triple used when verifying a
// revision-1.1 join-accept MIC: requestType (always 0xFF, join-accept) |
// joinEUI (LE) | devNonce (LE).
func JoinAcceptMIC11Prefix(joinEUI [8]byte, devNonce uint16) []byte {
	buf := make([]byte, 11)
	buf[0] = joinAcceptReqID
	copy(buf[1:9], joinEUI[:])
	buf[9] = byte(devNonce)
	buf[10] = byte(devNonce >> 8)
	return buf
}
