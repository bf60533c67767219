package estimator

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/User65k/baos/internal/blind"
)

// SweepInterval is how long the event channel may sit silent before
// the periodic endpoint-promotion sweep runs.
const SweepInterval = 5 * time.Second

// Observation is reported for every blind whose entry changed, either
// from an event or from the periodic sweep.
type Observation struct {
	Blind blind.Blind
	Entry Entry
}

// Run is the thin driver loop around the pure Reduce/Sweep functions:
// it consumes events, commits them to store, and reports affected
// blinds on observe. It returns when events is closed or ctx is done.
func Run(ctx context.Context, events <-chan Event, store *Store, timing Timing, observe chan<- Observation, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	timer := time.NewTimer(SweepInterval)
	defer timer.Stop()

	report := func(ids []blind.Blind) {
		for _, id := range ids {
			entry, ok := store.Get(id)
			if !ok {
				continue
			}
			select {
			case observe <- Observation{Blind: id, Entry: entry}:
			default:
				logger.Warn("observation channel full, dropping update", "blind", id)
			}
		}
	}

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(SweepInterval)

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			affected := store.Apply(ev, timing)
			report(affected)
		case <-timer.C:
			affected := store.SweepNow(timing)
			report(affected)
		}
	}
}
