package blind

import (
	"fmt"
	"time"
)

// Angle is a blind's slat angle, 0 (closed, slats down) to 7 (closed,
// slats up).
type Angle uint8

const MaxAngle uint8 = 7

const (
	AngleTop    Angle = Angle(MaxAngle)
	AngleBottom Angle = 0
)

// NewAngle constructs an Angle, panicking if n is out of range.
func NewAngle(n uint8) Angle {
	if n > MaxAngle {
		panic(fmt.Sprintf("blind: angle %d out of range", n))
	}
	return Angle(n)
}

// Up turns the slats toward AngleTop over timeMoving, on the
// full-turn time scale, saturating once timeMoving reaches fullTurn.
func (a *Angle) Up(timeMoving, fullTurn time.Duration) {
	if timeMoving >= fullTurn {
		*a = AngleTop
		return
	}
	delta := int64(MaxAngle) * timeMoving.Nanoseconds() / fullTurn.Nanoseconds()
	t := int64(*a) + delta
	if t > int64(MaxAngle) {
		t = int64(MaxAngle)
	}
	*a = Angle(t)
}

// Down is symmetric to Up, saturating at AngleBottom.
func (a *Angle) Down(timeMoving, fullTurn time.Duration) {
	if timeMoving >= fullTurn {
		*a = AngleBottom
		return
	}
	delta := int64(MaxAngle) * timeMoving.Nanoseconds() / fullTurn.Nanoseconds()
	t := int64(*a) - delta
	if t < 0 {
		t = 0
	}
	*a = Angle(t)
}

// StepUp nudges the angle up by arg units, saturating at AngleTop and
// reporting whether it saturated.
func (a *Angle) StepUp(arg uint8) (saturated bool) {
	t := uint8(*a) + arg
	if t > MaxAngle {
		*a = AngleTop
		return true
	}
	*a = Angle(t)
	return false
}

// StepDown nudges the angle down by arg units, saturating at
// AngleBottom and reporting whether it saturated.
func (a *Angle) StepDown(arg uint8) (saturated bool) {
	if uint8(*a) >= arg {
		*a = Angle(uint8(*a) - arg)
		return false
	}
	*a = AngleBottom
	return true
}

// AngleStepTime is the time a full-range turn needs to cover steps
// units of angle, i.e. fullTurn * steps / MaxAngle.
func AngleStepTime(steps uint8, fullTurn time.Duration) time.Duration {
	return fullTurn * time.Duration(steps) / time.Duration(MaxAngle)
}

// Delta returns the direction and magnitude of the turn from a to
// other: Down if other is smaller, Up otherwise.
func (a Angle) Delta(other Angle) (Direction, uint8) {
	if a > other {
		return Down, uint8(a - other)
	}
	return Up, uint8(other - a)
}
