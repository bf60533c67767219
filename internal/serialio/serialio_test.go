package serialio

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openTestChannel builds a Channel directly around one end of a pty
// pair, bypassing Open/term.Open (which expects a device path) so the
// poll-based readiness logic can be exercised against a real tty. The
// tty is switched to non-canonical mode, as Open does, so single bytes
// become readable without waiting for a line end.
func openTestChannel(t *testing.T) (*Channel, *os.File) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		ptmx.Close()
		tty.Close()
	})
	fd := int(tty.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	require.NoError(t, err)
	termios.Lflag &^= unix.ICANON | unix.ECHO
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	require.NoError(t, unix.IoctlSetTermios(fd, unix.TCSETS, termios))
	return &Channel{fd: fd}, ptmx
}

func TestWaitReadableTimesOut(t *testing.T) {
	ch, _ := openTestChannel(t)
	err := ch.WaitReadable(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestTryReadWouldBlock(t *testing.T) {
	ch, _ := openTestChannel(t)
	buf := make([]byte, 1)
	_, err := ch.TryRead(buf)
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestWaitReadableThenRead(t *testing.T) {
	ch, ptmx := openTestChannel(t)
	_, err := ptmx.Write([]byte{0x42})
	require.NoError(t, err)

	err = ch.WaitReadable(time.Second)
	require.NoError(t, err)

	buf := make([]byte, 1)
	n, err := unixReadDirect(ch.fd, buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, byte(0x42), buf[0])
}

func unixReadDirect(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}
