// Package estimator infers each blind's believed position and slat
// angle from observed bus events and elapsed wall-clock time. The
// hardware itself reports no positions, so this is the only source of
// truth external observers get.
package estimator

import (
	"time"

	"github.com/User65k/baos/internal/blind"
)

// Entry is one blind's believed state. MoveStart is non-nil iff a
// move is currently believed in progress.
type Entry struct {
	MoveStart *time.Time
	Direction blind.Direction
	Position  blind.Pos
	Angle     blind.Angle
}

// Moving reports whether a move is currently believed in progress.
func (e Entry) Moving() bool {
	return e.MoveStart != nil
}

// Event is one observed bus event: a group write recognized as a
// move or step command for a blind, or the reserved wind event.
type Event struct {
	Time       time.Time
	Direction  blind.Direction
	SingleStep bool
	Blind      blind.Blind
}

// Timing carries the two physical calibration constants the reducer
// needs. These are configuration, not code constants (see DESIGN.md).
type Timing struct {
	FullTravel time.Duration
	FullTurn   time.Duration
}

func cloneStates(m map[blind.Blind]Entry) map[blind.Blind]Entry {
	out := make(map[blind.Blind]Entry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func endpoint(dir blind.Direction) (blind.Pos, blind.Angle) {
	if dir == blind.Up {
		return blind.PosTop, blind.AngleTop
	}
	return blind.PosBottom, blind.AngleBottom
}

func opposite(dir blind.Direction) blind.Direction {
	if dir == blind.Up {
		return blind.Down
	}
	return blind.Up
}

// shortenedMove applies the elapsed-time delta for a move in
// direction dir to entry's position and angle, snapping to the
// endpoint once elapsed reaches the full travel time.
func shortenedMove(entry *Entry, elapsed time.Duration, dir blind.Direction, timing Timing) {
	if elapsed >= timing.FullTravel {
		entry.Position, entry.Angle = endpoint(dir)
		return
	}
	switch dir {
	case blind.Up:
		entry.Position.Up(elapsed, timing.FullTravel)
		entry.Angle.Up(elapsed, timing.FullTurn)
	case blind.Down:
		entry.Position.Down(elapsed, timing.FullTravel)
		entry.Angle.Down(elapsed, timing.FullTurn)
	}
}
