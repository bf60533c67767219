// Package serialio opens a raw, nonblocking duplex byte stream to a
// serial device. It wraps github.com/pkg/term for the termios setup
// and golang.org/x/sys/unix for the readiness polling pkg/term itself
// does not provide.
package serialio

import (
	"errors"
	"fmt"
	"time"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// ErrTimedOut is returned by WaitReadable when no data arrives before
// the deadline.
var ErrTimedOut = errors.New("serialio: wait readable timed out")

// ErrWouldBlock is returned by TryRead when no data is currently
// available to read.
var ErrWouldBlock = errors.New("serialio: would block")

// Channel is a duplex byte stream to a serial device, 8N1, opened raw
// at a fixed baud rate.
type Channel struct {
	t  *term.Term
	fd int
}

// Open opens device at the given baud rate in raw mode, following the
// same term.Open-then-SetSpeed sequence used throughout this codebase's
// ancestry.
func Open(device string, baud int) (*Channel, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", device, err)
	}
	if err := t.SetSpeed(baud); err != nil {
		t.Close()
		return nil, fmt.Errorf("serialio: set speed %d on %s: %w", baud, device, err)
	}
	return &Channel{t: t, fd: int(t.Fd())}, nil
}

// Close releases the underlying device handle.
func (c *Channel) Close() error {
	return c.t.Close()
}

// WaitReadable blocks until at least one byte is available to read or
// timeout elapses. A zero timeout waits forever.
func (c *Channel) WaitReadable(timeout time.Duration) error {
	ms := -1
	if timeout > 0 {
		ms = int(timeout.Milliseconds())
	}
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		return fmt.Errorf("serialio: poll: %w", err)
	}
	if n == 0 {
		return ErrTimedOut
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		return fmt.Errorf("serialio: device error or hangup")
	}
	return nil
}

// TryRead performs a single nonblocking read attempt into buf. It
// returns ErrWouldBlock if no byte is currently pending, and an error
// wrapping io.EOF-like "unexpected eof" semantics if the read returns
// zero bytes without error (device gone away).
func (c *Channel) TryRead(buf []byte) (int, error) {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		return 0, fmt.Errorf("serialio: poll: %w", err)
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	read, err := c.t.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("serialio: read: %w", err)
	}
	if read == 0 {
		return 0, fmt.Errorf("serialio: unexpected eof")
	}
	return read, nil
}

// WriteAll writes the entire buffer, treating any short write as an
// I/O error.
func (c *Channel) WriteAll(data []byte) error {
	n, err := c.t.Write(data)
	if err != nil {
		return fmt.Errorf("serialio: write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("serialio: short write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// ReadByte blocks until exactly one byte is available and returns it.
// Used by transactions that have already established readiness (e.g.
// waiting for a single ack byte) and want a simple blocking read.
func (c *Channel) ReadByte() (byte, error) {
	buf := make([]byte, 1)
	n, err := c.t.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("serialio: read: %w", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("serialio: unexpected eof")
	}
	return buf[0], nil
}
