package cryptocore

// Direction distinguishes uplink from downlink in the counter block and the
// MIC prefix block.
type Direction byte

// The two frame directions.
const (
	Uplink   Direction = 0
	Downlink Direction = 1
)

// CryptPayload implements LoRaWAN's AES-CTR-shaped payload cipher (§4.3).
// It is its own inverse: calling it twice with the same key, devAddr, fCnt,
// dir, and counter mode returns the original bytes.
//
// When counter is false (the FOpts encryption path) the block-counter byte
// is held at zero for every block; when true it increments per block, as
// required for FRMPayload.
func CryptPayload(cipher BlockCipher, key Key, dir Direction, devAddr uint32, fCnt uint32, counter bool, data []byte) []byte {
	out := make([]byte, len(data))
	var block [blockSize]byte
	var enc [blockSize]byte

	nBlocks := (len(data) + blockSize - 1) / blockSize
	for i := 0; i < nBlocks; i++ {
		clear(block[:])
		block[0] = 0x01
		block[5] = byte(dir)
		putUint32LE(block[6:10], devAddr)
		putUint32LE(block[10:14], fCnt)
		block[14] = 0
		if counter {
			block[15] = byte(i + 1)
		} else {
			block[15] = 0
		}

		cipher.EncryptBlock(key, enc[:], block[:])

		start := i * blockSize
		end := start + blockSize
		if end > len(data) {
			end = len(data)
		}
		for j := start; j < end; j++ {
			out[j] = data[j] ^ enc[j-start]
		}
	}
	return out
}

func putUint32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
