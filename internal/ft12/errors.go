package ft12

import "errors"

// Framing errors: a single garbled frame is logged and discarded by
// the receive loop, it does not bring the link down.
var (
	ErrFrameStartExpected = errors.New("ft12: frame start byte expected")
	ErrMalformedHeader    = errors.New("ft12: malformed frame header")
	ErrLengthMismatch     = errors.New("ft12: length fields disagree")
	ErrChecksumMismatch   = errors.New("ft12: checksum mismatch")
	ErrFrameEndExpected   = errors.New("ft12: frame end byte expected")
)

// Protocol errors. On the receive path they are fatal to the link
// layer: the reader goroutine exits and the gateway's supervisor takes
// over. ErrAckMismatch from a send is returned to that send's caller.
var (
	ErrAckMismatch         = errors.New("ft12: acknowledgement mismatch")
	ErrParityDesync        = errors.New("ft12: parity desync")
	ErrResetFailed         = errors.New("ft12: reset failed")
	ErrInitUnexpectedResponse = errors.New("ft12: unexpected response during initialization")
	ErrInitTimeout         = errors.New("ft12: timed out waiting for initialization response")
)
