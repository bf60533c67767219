package gateway

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/User65k/baos/internal/blind"
	"github.com/User65k/baos/internal/cemi"
	"github.com/User65k/baos/internal/estimator"
	"github.com/User65k/baos/internal/planner"
)

func nopLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestGateway() *Gateway {
	timing := planner.Timing{FullTravel: 20 * time.Millisecond, FullTurn: 10 * time.Millisecond}
	return &Gateway{
		store:     estimator.NewStore(),
		timing:    timing,
		estTiming: estimator.Timing{FullTravel: timing.FullTravel, FullTurn: timing.FullTurn},
		log:       nopLogger(),
		trace:     nopLogger(),
		events:    make(chan estimator.Event, 8),
		fanOut:    newBroadcaster(),
		errs:      make(chan error, 1),
	}
}

func TestOnTelegramRecognizesGroupWriteForKnownBlind(t *testing.T) {
	g := newTestGateway()
	g.log = nopLogger()

	id := blind.FromPort('c')
	telegram := cemi.BuildGroupWrite(id.ToGroupAddr(false), 1) // Down
	telegram[0] = cemi.LDataInd
	g.onTelegram(telegram)

	select {
	case ev := <-g.events:
		assert.Equal(t, id, ev.Blind)
		assert.Equal(t, blind.Down, ev.Direction)
		assert.False(t, ev.SingleStep)
	default:
		t.Fatal("expected an event to be queued")
	}
}

func TestOnTelegramRecognizesWindAlarm(t *testing.T) {
	g := newTestGateway()
	g.log = nopLogger()

	telegram := cemi.BuildGroupWrite(blind.WindAlarmAddr, 1)
	telegram[0] = cemi.LDataInd
	g.onTelegram(telegram)

	select {
	case ev := <-g.events:
		assert.Equal(t, blind.Wind, ev.Blind)
		assert.Equal(t, blind.Up, ev.Direction)
	default:
		t.Fatal("expected a wind alarm event to be queued")
	}
}

func TestOnTelegramIgnoresUnmanagedAddress(t *testing.T) {
	g := newTestGateway()
	g.log = nopLogger()

	telegram := cemi.BuildGroupWrite(0x0003, 1)
	telegram[0] = cemi.LDataInd
	g.onTelegram(telegram)

	select {
	case ev := <-g.events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestSnapshotReflectsAppliedEvents(t *testing.T) {
	g := newTestGateway()
	id := blind.FromPort('a')
	g.store.Apply(estimator.Event{Time: time.Now(), Direction: blind.Down, Blind: id}, g.estTiming)

	snap := g.Snapshot()
	entry, ok := snap[id]
	require.True(t, ok)
	assert.True(t, entry.Moving())
}
