package estimator

import (
	"time"

	"github.com/User65k/baos/internal/blind"
)

// Reduce is the pure core of the estimator: given the prior state
// store, one observed event, and the timing constants, it returns the
// new state store and the set of blinds whose entries changed. It has
// no side effects and is driven by Run for production use and by
// tests directly with synthetic events and fabricated timestamps.
func Reduce(prior map[blind.Blind]Entry, ev Event, timing Timing) (next map[blind.Blind]Entry, affected []blind.Blind) {
	next = cloneStates(prior)

	if ev.Blind == blind.Wind {
		for c := byte('a'); c <= 'h'; c++ {
			id := blind.FromPort(c)
			t := ev.Time
			next[id] = Entry{
				MoveStart: &t,
				Direction: blind.Up,
				Position:  blind.PosTop,
				Angle:     blind.AngleTop,
			}
			affected = append(affected, id)
		}
		return next, affected
	}

	if ev.SingleStep {
		return reduceSingleStep(next, ev, timing)
	}
	return reduceFullMove(next, ev, timing)
}

func reduceSingleStep(next map[blind.Blind]Entry, ev Event, timing Timing) (map[blind.Blind]Entry, []blind.Blind) {
	entry, ok := next[ev.Blind]
	if !ok {
		// position is unknown; a single tick is too ambiguous to bootstrap from.
		return next, nil
	}
	if entry.Moving() {
		elapsed := ev.Time.Sub(*entry.MoveStart)
		shortenedMove(&entry, elapsed, entry.Direction, timing)
		entry.MoveStart = nil
	} else {
		if ev.Direction == blind.Up {
			entry.Angle.StepUp(1)
		} else {
			entry.Angle.StepDown(1)
		}
	}
	next[ev.Blind] = entry
	return next, []blind.Blind{ev.Blind}
}

func reduceFullMove(next map[blind.Blind]Entry, ev Event, timing Timing) (map[blind.Blind]Entry, []blind.Blind) {
	entry, ok := next[ev.Blind]
	if ok {
		if entry.Moving() {
			elapsed := ev.Time.Sub(*entry.MoveStart)
			shortenedMove(&entry, elapsed, entry.Direction, timing)
		}
	} else {
		// bootstrap: assume the blind starts at the endpoint opposite the
		// commanded direction, so the move now in progress carries it
		// toward the expected endpoint.
		entry.Position, entry.Angle = endpoint(opposite(ev.Direction))
	}
	t := ev.Time
	entry.MoveStart = &t
	entry.Direction = ev.Direction
	next[ev.Blind] = entry
	return next, []blind.Blind{ev.Blind}
}

// Sweep promotes any in-progress move that started at least
// timing.FullTravel before now to its endpoint. It is called on every
// period of event-channel silence.
func Sweep(prior map[blind.Blind]Entry, now time.Time, timing Timing) (next map[blind.Blind]Entry, affected []blind.Blind) {
	next = cloneStates(prior)
	for c := byte('a'); c <= 'h'; c++ {
		id := blind.FromPort(c)
		entry, ok := next[id]
		if !ok || !entry.Moving() {
			continue
		}
		if now.Sub(*entry.MoveStart) >= timing.FullTravel {
			entry.MoveStart = nil
			entry.Position, entry.Angle = endpoint(entry.Direction)
			next[id] = entry
			affected = append(affected, id)
		}
	}
	return next, affected
}
