// Package ft12 implements the FT1.2 framed serial link layer: framing,
// checksums, parity-alternating control bytes, the reset handshake,
// per-frame acknowledgement, and the bus-token mutual exclusion that
// makes one send-and-ack or receive-and-ack atomic on the wire.
package ft12

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/User65k/baos/internal/serialio"
)

// AckTimeout is how long a sender waits for the single acknowledgement
// byte after writing a frame.
const AckTimeout = 100 * time.Millisecond

// pollInterval bounds how long a context-aware readiness wait blocks
// before re-checking for cancellation.
const pollInterval = 200 * time.Millisecond

// Link is a single, token-guarded FT1.2 connection over a serial
// channel.
type Link struct {
	ch    *serialio.Channel
	log   *log.Logger
	trace *log.Logger
	token chan struct{}

	sendOdd bool // protected by token
	recvOdd bool // protected by token
}

// New wraps ch in a Link. The parity bits start "odd", matching the
// state immediately after a reset. trace, when non-nil, receives one
// record per frame sent or received, raw bytes and all; pass nil to
// disable wire tracing.
func New(ch *serialio.Channel, logger *log.Logger, trace *log.Logger) *Link {
	if logger == nil {
		logger = log.Default()
	}
	if trace == nil {
		trace = log.NewWithOptions(io.Discard, log.Options{})
	}
	l := &Link{
		ch:      ch,
		log:     logger,
		trace:   trace,
		token:   make(chan struct{}, 1),
		sendOdd: true,
		recvOdd: true,
	}
	l.token <- struct{}{}
	return l
}

func (l *Link) acquire(ctx context.Context) error {
	select {
	case <-l.token:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) release() {
	l.token <- struct{}{}
}

// waitReadableCtx waits for data to be readable, honoring ctx
// cancellation even with timeout<=0 (wait forever) by polling in
// bounded slices.
func (l *Link) waitReadableCtx(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		done := make(chan error, 1)
		go func() { done <- l.ch.WaitReadable(timeout) }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		err := l.ch.WaitReadable(pollInterval)
		if err == nil {
			return nil
		}
		if !errors.Is(err, serialio.ErrTimedOut) {
			return err
		}
	}
}

// readExact reads len(buf) bytes, assuming the caller already holds
// the bus token.
func (l *Link) readExact(ctx context.Context, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := l.waitReadableCtx(ctx, 0); err != nil {
			return err
		}
		n, err := l.ch.TryRead(buf[read:])
		if errors.Is(err, serialio.ErrWouldBlock) {
			continue
		}
		if err != nil {
			return err
		}
		read += n
	}
	return nil
}

// sendAndAckLocked writes raw and waits for a single 0xE5 ack. The
// caller must already hold the bus token.
func (l *Link) sendAndAckLocked(ctx context.Context, raw []byte) error {
	l.trace.Debug("tx", "bytes", fmt.Sprintf("% x", raw))
	if err := l.ch.WriteAll(raw); err != nil {
		return fmt.Errorf("ft12: write: %w", err)
	}
	if err := l.waitReadableCtx(ctx, AckTimeout); err != nil {
		return fmt.Errorf("%w: %v", ErrAckMismatch, err)
	}
	b, err := l.ch.ReadByte()
	if err != nil {
		return fmt.Errorf("ft12: ack read: %w", err)
	}
	l.trace.Debug("rx", "bytes", fmt.Sprintf("%#02x", b))
	if b != ackByte {
		return fmt.Errorf("%w: got %#02x", ErrAckMismatch, b)
	}
	return nil
}

// Reset performs the fixed 4-byte reset handshake and resets both
// parity bits to "odd".
func (l *Link) Reset(ctx context.Context) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	if err := l.sendAndAckLocked(ctx, resetRequest); err != nil {
		return fmt.Errorf("%w: %v", ErrResetFailed, err)
	}
	l.sendOdd = true
	l.recvOdd = true
	l.log.Debug("link reset")
	return nil
}

// WriteData sends a data frame carrying the given payload, choosing
// the control byte from the current send parity and toggling it on
// success.
func (l *Link) WriteData(ctx context.Context, data []byte) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	control := ctrlHostEven
	if l.sendOdd {
		control = ctrlHostOdd
	}
	frame := Frame{Control: control, Data: data}
	if err := l.sendAndAckLocked(ctx, frame.Encode()); err != nil {
		return err
	}
	l.sendOdd = !l.sendOdd
	return nil
}

// ReadFrame waits for and returns the next data frame, acknowledging
// it on the wire and verifying its parity. It transparently discards
// stray acknowledgement bytes and retries. A garbled frame (framing
// error) is returned to the caller without acknowledgement so the
// caller can log-and-continue per the gateway's error policy; a
// parity desync is fatal and returned as ErrParityDesync.
func (l *Link) ReadFrame(ctx context.Context) (Frame, error) {
	buf := make([]byte, maxFrameLen)
	for {
		if err := l.waitReadableCtx(ctx, 0); err != nil {
			return Frame{}, err
		}
		if err := l.acquire(ctx); err != nil {
			return Frame{}, err
		}

		n, err := l.ch.TryRead(buf)
		if errors.Is(err, serialio.ErrWouldBlock) {
			l.release()
			continue
		}
		if err != nil {
			l.release()
			return Frame{}, fmt.Errorf("ft12: read: %w", err)
		}

		frame, stray, rerr := l.finishReceive(ctx, buf, n)
		l.release()
		if stray {
			continue
		}
		if rerr != nil {
			return Frame{}, rerr
		}
		return l.checkRecvParity(frame)
	}
}

// finishReceive validates and acknowledges a frame whose first bytes
// are already in buf[:n]. The caller must hold the bus token; it is
// released by the caller, not here, so the ack write still happens
// under the token per §4.2.1.
func (l *Link) finishReceive(ctx context.Context, buf []byte, n int) (frame Frame, stray bool, err error) {
	if n == 0 {
		return Frame{}, false, fmt.Errorf("ft12: unexpected eof")
	}
	if buf[0] == ackByte {
		return Frame{}, true, nil
	}
	if buf[0] != frameStart {
		return Frame{}, false, ErrFrameStartExpected
	}
	if n < 4 {
		if err := l.readExact(ctx, buf[n:4]); err != nil {
			return Frame{}, false, err
		}
		n = 4
	}
	if buf[1] != buf[2] || buf[3] != frameStart {
		return Frame{}, false, ErrMalformedHeader
	}
	length := int(buf[1])
	total := length + 6
	if total > len(buf) {
		return Frame{}, false, ErrMalformedHeader
	}
	if n < total {
		if err := l.readExact(ctx, buf[n:total]); err != nil {
			return Frame{}, false, err
		}
	}
	f, derr := decodeFrame(buf[:total])
	if derr != nil {
		return Frame{}, false, derr
	}
	l.trace.Debug("rx", "bytes", fmt.Sprintf("% x", buf[:total]))
	if err := l.ch.WriteAll([]byte{ackByte}); err != nil {
		return Frame{}, false, fmt.Errorf("ft12: ack write: %w", err)
	}
	return f, false, nil
}

func (l *Link) checkRecvParity(f Frame) (Frame, error) {
	expected := ctrlDevEven
	if l.recvOdd {
		expected = ctrlDevOdd
	}
	if f.Control != expected {
		return Frame{}, fmt.Errorf("%w: expected %#02x, got %#02x", ErrParityDesync, expected, f.Control)
	}
	l.recvOdd = !l.recvOdd
	return f, nil
}
