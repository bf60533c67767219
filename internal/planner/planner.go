// Package planner computes and drives the two-phase (position, then
// angle) timed command sequence that takes a blind from its believed
// current state to a requested target.
package planner

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/User65k/baos/internal/blind"
	"github.com/User65k/baos/internal/estimator"
)

// Writer is the subset of the link layer the planner drives: emit a
// group write for addr with a single command byte (0 = Up, 1 = Down).
type Writer interface {
	SendGroupWrite(ctx context.Context, addr uint16, data byte) error
}

// Timing carries the two physical calibration constants the planner
// needs to size its sleeps.
type Timing struct {
	FullTravel time.Duration
	FullTurn   time.Duration
}

func dirByte(d blind.Direction) byte {
	if d == blind.Up {
		return 0
	}
	return 1
}

// MoveTo drives b from its believed current state (read from store)
// to (targetPos, targetAngle), emitting timed bursts of group writes
// through w. Concurrent invocations for distinct blinds are
// independent; for the same blind the caller is responsible for not
// overlapping calls if a clean final state matters, though a
// superseded call's remaining sleeps are harmless — the estimator is
// still driven correctly by the bus echoes each write produces.
func MoveTo(ctx context.Context, w Writer, store *estimator.Store, timing Timing, b blind.Blind, targetPos blind.Pos, targetAngle blind.Angle, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	if targetPos == blind.PosBottom && targetAngle == blind.AngleBottom {
		return w.SendGroupWrite(ctx, b.ToGroupAddr(false), dirByte(blind.Down))
	}
	if targetPos == blind.PosTop && targetAngle == blind.AngleTop {
		return w.SendGroupWrite(ctx, b.ToGroupAddr(false), dirByte(blind.Up))
	}

	pos, angle, lastDir, err := currentOrBootstrap(ctx, w, store, timing, b, targetPos, logger)
	if err != nil {
		return err
	}

	pos, angle, lastDir, err = positionPhase(ctx, w, timing, b, pos, angle, targetPos, lastDir, logger)
	if err != nil {
		return err
	}

	return anglePhase(ctx, w, timing, b, angle, targetAngle, lastDir, logger)
}

// currentOrBootstrap returns the blind's believed (position, angle)
// and the direction of the last full-move command issued so far (the
// bootstrap drive, if any).
func currentOrBootstrap(ctx context.Context, w Writer, store *estimator.Store, timing Timing, b blind.Blind, targetPos blind.Pos, logger *log.Logger) (blind.Pos, blind.Angle, blind.Direction, error) {
	entry, ok := store.Get(b)
	if ok {
		return entry.Position, entry.Angle, entry.Direction, nil
	}

	dir := blind.Up
	if targetPos < 50 {
		dir = blind.Down
	}
	logger.Debug("bootstrapping unknown blind state", "blind", b, "direction", dir)
	if err := w.SendGroupWrite(ctx, b.ToGroupAddr(false), dirByte(dir)); err != nil {
		return 0, 0, dir, err
	}
	if err := sleepCtx(ctx, timing.FullTravel); err != nil {
		return 0, 0, dir, err
	}
	if dir == blind.Down {
		return blind.PosBottom, blind.AngleBottom, dir, nil
	}
	return blind.PosTop, blind.AngleTop, dir, nil
}

func positionPhase(ctx context.Context, w Writer, timing Timing, b blind.Blind, pos blind.Pos, angle blind.Angle, targetPos blind.Pos, lastDir blind.Direction, logger *log.Logger) (blind.Pos, blind.Angle, blind.Direction, error) {
	dir, delta := pos.Delta(targetPos)
	if delta == 0 {
		return pos, angle, lastDir, nil
	}
	if err := w.SendGroupWrite(ctx, b.ToGroupAddr(false), dirByte(dir)); err != nil {
		return pos, angle, lastDir, err
	}
	travel := blind.PosStepTime(delta, timing.FullTravel)
	if err := sleepCtx(ctx, travel); err != nil {
		return pos, angle, lastDir, err
	}
	if dir == blind.Up {
		pos.Up(travel, timing.FullTravel)
		angle.Up(travel, timing.FullTurn)
	} else {
		pos.Down(travel, timing.FullTravel)
		angle.Down(travel, timing.FullTurn)
	}
	return pos, angle, dir, nil
}

func anglePhase(ctx context.Context, w Writer, timing Timing, b blind.Blind, angle, targetAngle blind.Angle, lastDir blind.Direction, logger *log.Logger) error {
	if angle == targetAngle {
		// halt any residual motion the position phase caused.
		return w.SendGroupWrite(ctx, b.ToGroupAddr(true), dirByte(lastDir))
	}
	dir, delta := angle.Delta(targetAngle)
	if err := w.SendGroupWrite(ctx, b.ToGroupAddr(false), dirByte(dir)); err != nil {
		return err
	}
	turn := blind.AngleStepTime(delta, timing.FullTurn)
	if err := sleepCtx(ctx, turn); err != nil {
		return err
	}
	return w.SendGroupWrite(ctx, b.ToGroupAddr(true), dirByte(dir))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
