// Package gateway wires the serial link, cEMI codec, position
// estimator, and motion planner into the four operations external
// collaborators (the TCP control server, discovery, and any future
// message-broker bridge) are built against.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/User65k/baos/internal/blind"
	"github.com/User65k/baos/internal/cemi"
	"github.com/User65k/baos/internal/estimator"
	"github.com/User65k/baos/internal/ft12"
	"github.com/User65k/baos/internal/planner"
)

// Gateway owns the link layer and the estimator store, and is the
// single place SendGroupWrite/MoveTo/Snapshot/Observe are exposed to
// collaborators outside the core.
type Gateway struct {
	link      *ft12.Link
	store     *estimator.Store
	timing    planner.Timing
	estTiming estimator.Timing
	log       *log.Logger
	trace     *log.Logger

	events chan estimator.Event
	fanOut *broadcaster
	errs   chan error
}

// New builds a Gateway around an already-reset link. Call Run to
// start the reader/reducer goroutines; fatal reader errors are
// reported on the channel returned by Errs so a supervisor can decide
// whether to restart the process. trace, when non-nil, receives one record
// per recognized bus telegram and outgoing group write, in addition
// to the frame-level tracing ft12.Link already does on the same
// logger; pass nil to disable it.
func New(link *ft12.Link, timing planner.Timing, logger *log.Logger, trace *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	if trace == nil {
		trace = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Gateway{
		link:      link,
		store:     estimator.NewStore(),
		timing:    timing,
		estTiming: estimator.Timing{FullTravel: timing.FullTravel, FullTurn: timing.FullTurn},
		log:       logger,
		trace:     trace,
		events:    make(chan estimator.Event, 32),
		fanOut:    newBroadcaster(),
		errs:      make(chan error, 2),
	}
}

// Errs reports fatal errors from the reader loop.
func (g *Gateway) Errs() <-chan error {
	return g.errs
}

// Run starts the bus reader and the estimator reducer loop. It blocks
// until ctx is cancelled or the reader stops on a fatal link error.
func (g *Gateway) Run(ctx context.Context) {
	observe := make(chan estimator.Observation, 32)
	go g.fanOut.pump(ctx, observe)
	go estimator.Run(ctx, g.events, g.store, g.estTiming, observe, g.log)
	g.readLoop(ctx)
}

func (g *Gateway) readLoop(ctx context.Context) {
	for {
		frame, err := g.link.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, ft12.ErrFrameStartExpected) || errors.Is(err, ft12.ErrMalformedHeader) ||
				errors.Is(err, ft12.ErrLengthMismatch) || errors.Is(err, ft12.ErrChecksumMismatch) ||
				errors.Is(err, ft12.ErrFrameEndExpected) {
				g.log.Warn("garbled frame discarded", "err", err)
				continue
			}
			select {
			case g.errs <- fmt.Errorf("gateway: read frame: %w", err):
			default:
			}
			g.log.Error("link read failed, reader exiting", "err", err)
			return
		}
		g.onTelegram(frame.Data)
	}
}

// onTelegram recognizes a group-value-write telegram addressed to a
// known blind or the wind pseudo-blind and turns it into an estimator
// event; anything else is logged and dropped.
func (g *Gateway) onTelegram(data []byte) {
	msg := cemi.Parse(data)
	code, err := msg.MsgCode()
	if err != nil {
		g.log.Warn("short telegram discarded", "err", err)
		return
	}
	if code != cemi.LDataInd && code != cemi.LDataCon {
		return
	}
	if !msg.IsGroupWrite() {
		return
	}
	dest, err := msg.Dest()
	if err != nil {
		g.log.Warn("telegram missing destination", "err", err)
		return
	}
	payload, err := msg.GroupData()
	if err != nil {
		g.log.Warn("telegram group data unreadable", "addr", dest, "err", err)
		return
	}
	g.trace.Debug("group write received", "addr", fmt.Sprintf("%#04x", dest), "data", payload)

	if dest == blind.WindAlarmAddr {
		if len(payload) > 0 && payload[0] != 0 {
			g.pushEvent(estimator.Event{Direction: blind.Up, Blind: blind.Wind})
		}
		return
	}

	b, singleStep, err := blind.FromGroupAddr(dest)
	if err != nil {
		g.log.Debug("group write to unmanaged address", "addr", dest)
		return
	}
	if len(payload) != 1 {
		g.log.Warn("group write with unexpected payload length", "addr", dest, "len", len(payload))
		return
	}
	dir := blind.Up
	if payload[0] != 0 {
		dir = blind.Down
	}
	g.pushEvent(estimator.Event{Direction: dir, SingleStep: singleStep, Blind: b})
}

func (g *Gateway) pushEvent(ev estimator.Event) {
	ev.Time = time.Now()
	select {
	case g.events <- ev:
	default:
		g.log.Warn("event channel full, dropping bus event", "blind", ev.Blind)
	}
}

// SendGroupWrite emits a single group-value-write telegram for addr
// carrying b, the sink operation every collaborator ultimately drives
// through.
func (g *Gateway) SendGroupWrite(ctx context.Context, addr uint16, b byte) error {
	g.trace.Debug("group write sent", "addr", fmt.Sprintf("%#04x", addr), "data", b)
	return g.link.WriteData(ctx, cemi.BuildGroupWrite(addr, b))
}

// MoveTo drives blind id from its believed state to (pos, angle).
func (g *Gateway) MoveTo(ctx context.Context, id blind.Blind, pos blind.Pos, angle blind.Angle) error {
	return planner.MoveTo(ctx, moveWriter{g}, g.store, g.timing, id, pos, angle, g.log)
}

// Snapshot returns a copy of every blind's believed state.
func (g *Gateway) Snapshot() map[blind.Blind]estimator.Entry {
	return g.store.Snapshot()
}

// Observe returns a channel of state-change observations. Each call
// returns a distinct channel; all subscribers receive every
// observation (fan-out, not work distribution).
func (g *Gateway) Observe() <-chan estimator.Observation {
	return g.fanOut.subscribe()
}

// moveWriter adapts Gateway.SendGroupWrite to planner.Writer.
type moveWriter struct{ g *Gateway }

func (m moveWriter) SendGroupWrite(ctx context.Context, addr uint16, data byte) error {
	return m.g.SendGroupWrite(ctx, addr, data)
}
