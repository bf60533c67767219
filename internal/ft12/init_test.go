package ft12

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitializeScript(t *testing.T) {
	link, master := newTestLink(t)

	go playInitScript(master)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, link.Initialize(ctx))
}

// playInitScript plays the device side of the captured six-step
// initialization trace: read a request frame, ack it, send back the
// scripted response, wait for the host's ack.
func playInitScript(master *os.File) {
	ack := make([]byte, 1)
	for i, step := range initScript {
		control := ctrlHostOdd
		if i%2 == 1 {
			control = ctrlHostEven
		}
		hdr := make([]byte, 4)
		io_readFull(master, hdr)
		length := int(hdr[1])
		rest := make([]byte, length+2)
		io_readFull(master, rest)
		if rest[0] != control {
			return
		}
		master.Write([]byte{ackByte})

		respControl := ctrlDevOdd
		if i%2 == 1 {
			respControl = ctrlDevEven
		}
		master.Write(Frame{Control: respControl, Data: step.response}.Encode())
		io_readFull(master, ack)
	}
}
