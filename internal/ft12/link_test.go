package ft12

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/User65k/baos/internal/serialio"
)

// newTestLink opens a real pty pair and wraps the slave side in a
// Link, simulating the KNX interface on the master side.
func newTestLink(t *testing.T) (*Link, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})

	ch, err := serialio.Open(slave.Name(), 19200)
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	return New(ch, nil, nil), master
}

func TestResetSuccess(t *testing.T) {
	link, master := newTestLink(t)
	go func() {
		buf := make([]byte, 4)
		io_readFull(master, buf)
		master.Write([]byte{ackByte})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, link.Reset(ctx))
	assert.True(t, link.sendOdd)
	assert.True(t, link.recvOdd)
}

func TestWriteDataParityProgression(t *testing.T) {
	link, master := newTestLink(t)
	seen := make(chan byte, 5)
	go func() {
		for i := 0; i < 5; i++ {
			hdr := make([]byte, 4)
			io_readFull(master, hdr)
			length := int(hdr[1])
			rest := make([]byte, length+2)
			io_readFull(master, rest)
			seen <- rest[0] // control byte
			master.Write([]byte{ackByte})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		require.NoError(t, link.WriteData(ctx, []byte{0x01}))
	}

	want := []byte{ctrlHostOdd, ctrlHostEven, ctrlHostOdd, ctrlHostEven, ctrlHostOdd}
	for i := 0; i < 5; i++ {
		select {
		case c := <-seen:
			assert.Equal(t, want[i], c, "send %d", i)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for device to observe a send")
		}
	}
}

func TestReadFrameAckInterleaving(t *testing.T) {
	link, master := newTestLink(t)

	frame1 := Frame{Control: ctrlDevOdd, Data: []byte{0x01}}
	frame2 := Frame{Control: ctrlDevEven, Data: []byte{0x02}}

	ackSeen := make(chan struct{}, 1)
	go func() {
		master.Write(frame1.Encode())
		ack := make([]byte, 1)
		io_readFull(master, ack)
		ackSeen <- struct{}{}
		master.Write(frame2.Encode())
		io_readFull(master, ack)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got1, err := link.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got1.Data)

	select {
	case <-ackSeen:
	case <-time.After(time.Second):
		t.Fatal("host never acknowledged the first frame")
	}

	got2, err := link.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, got2.Data)
}

func TestFinishReceiveHandlesTrailingBytesPastFrameEnd(t *testing.T) {
	link, master := newTestLink(t)

	frame := Frame{Control: ctrlDevOdd, Data: []byte{0x01}}.Encode()
	// simulate a single TryRead that captured the whole frame plus the
	// start of whatever the device sent next.
	buf := make([]byte, maxFrameLen)
	n := copy(buf, frame)
	n += copy(buf[n:], []byte{0x68, 0x99})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ackDone := make(chan struct{})
	go func() {
		ack := make([]byte, 1)
		io_readFull(master, ack)
		close(ackDone)
	}()

	got, stray, err := link.finishReceive(ctx, buf, n)
	require.NoError(t, err)
	assert.False(t, stray)
	assert.Equal(t, []byte{0x01}, got.Data)

	select {
	case <-ackDone:
	case <-time.After(time.Second):
		t.Fatal("host never acknowledged the frame")
	}
}

func TestReadFrameChecksumMismatchThenRecovery(t *testing.T) {
	link, master := newTestLink(t)

	bad := Frame{Control: ctrlDevOdd, Data: []byte{0x01}}.Encode()
	bad[len(bad)-2] ^= 0xff // corrupt checksum byte

	good := Frame{Control: ctrlDevOdd, Data: []byte{0x02}}.Encode()

	go func() {
		master.Write(bad)
		master.Write(good)
		ack := make([]byte, 1)
		io_readFull(master, ack)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := link.ReadFrame(ctx)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	got, err := link.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, got.Data)
}

func TestReadFrameParityDesync(t *testing.T) {
	link, master := newTestLink(t)

	frame1 := Frame{Control: ctrlDevOdd, Data: []byte{0x01}}.Encode()
	frame2 := Frame{Control: ctrlDevOdd, Data: []byte{0x02}}.Encode() // should have been ctrlDevEven

	go func() {
		master.Write(frame1)
		ack := make([]byte, 1)
		io_readFull(master, ack)
		master.Write(frame2)
		io_readFull(master, ack)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := link.ReadFrame(ctx)
	require.NoError(t, err)

	_, err = link.ReadFrame(ctx)
	assert.ErrorIs(t, err, ErrParityDesync)
}

// io_readFull is a tiny helper so tests don't need to import io just
// for ReadFull.
func io_readFull(f *os.File, buf []byte) {
	read := 0
	for read < len(buf) {
		n, err := f.Read(buf[read:])
		if err != nil {
			return
		}
		read += n
	}
}
