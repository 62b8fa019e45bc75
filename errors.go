package classa

import "errors"

// Sentinel errors returned by Device operations. Wrapped with %w by the
// call site that produces them, so errors.Is still resolves to these.
var (
	ErrNotJoined         = errors.New("classa: device is not joined")
	ErrRxTimeout         = errors.New("classa: timed out waiting for a packet")
	ErrNoRxWindow        = errors.New("classa: no receive window is open")
	ErrDownlinkMalformed = errors.New("classa: downlink frame malformed")
	ErrMICMismatch       = errors.New("classa: MIC verification failed")
	ErrInvalidRevision   = errors.New("classa: server revision did not match RekeyInd")
	ErrUnsupported       = errors.New("classa: unsupported protocol feature")
	ErrInvalidPort       = errors.New("classa: invalid FPort")
	ErrInvalidChannel    = errors.New("classa: invalid channel index")
	ErrInvalidCid        = errors.New("classa: invalid MAC command identifier")
	ErrPacketTooLong     = errors.New("classa: payload exceeds the data rate's maximum")
	ErrUplinkUnavailable = errors.New("classa: uplink not available yet")
)
