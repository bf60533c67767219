package blind

import (
	"fmt"
	"time"
)

// Pos is a blind's vertical position, 0 (fully down) to 100 (fully up).
type Pos uint8

const (
	PosTop    Pos = 100
	PosBottom Pos = 0
)

// NewPos constructs a Pos, panicking if n is out of range — callers at
// the trust boundary (wire decode, user input) must validate first.
func NewPos(n uint8) Pos {
	if n > 100 {
		panic(fmt.Sprintf("blind: position %d out of range", n))
	}
	return Pos(n)
}

// Up advances the position toward PosTop by the distance covered in
// timeMoving, saturating at PosTop once timeMoving reaches fullTravel.
func (p *Pos) Up(timeMoving, fullTravel time.Duration) {
	if timeMoving >= fullTravel {
		*p = PosTop
		return
	}
	delta := 100 * timeMoving.Nanoseconds() / fullTravel.Nanoseconds()
	t := int64(*p) + delta
	if t > 100 {
		t = 100
	}
	*p = Pos(t)
}

// Down advances the position toward PosBottom, symmetric to Up.
func (p *Pos) Down(timeMoving, fullTravel time.Duration) {
	if timeMoving >= fullTravel {
		*p = PosBottom
		return
	}
	delta := 100 * timeMoving.Nanoseconds() / fullTravel.Nanoseconds()
	t := int64(*p) - delta
	if t < 0 {
		t = 0
	}
	*p = Pos(t)
}

// PosStepTime is the time a full-range move needs to cover steps units
// of position, i.e. fullTravel * steps / 100.
func PosStepTime(steps uint8, fullTravel time.Duration) time.Duration {
	return fullTravel * time.Duration(steps) / 100
}

// Delta returns the direction and magnitude of the move from p to
// other: Down if other is smaller, Up otherwise.
func (p Pos) Delta(other Pos) (Direction, uint8) {
	if p > other {
		return Down, uint8(p - other)
	}
	return Up, uint8(other - p)
}
