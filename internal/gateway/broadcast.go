package gateway

import (
	"context"
	"sync"

	"github.com/User65k/baos/internal/estimator"
)

// broadcaster fans a single stream of observations out to every
// subscriber, matching the "observation stream" collaborator
// interface which may have more than one listener (the control server
// and, eventually, a message-broker bridge).
type broadcaster struct {
	mu   sync.Mutex
	subs []chan estimator.Observation
}

func newBroadcaster() *broadcaster {
	return &broadcaster{}
}

func (b *broadcaster) subscribe() <-chan estimator.Observation {
	ch := make(chan estimator.Observation, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) pump(ctx context.Context, in <-chan estimator.Observation) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-in:
			if !ok {
				return
			}
			b.mu.Lock()
			for _, ch := range b.subs {
				select {
				case ch <- obs:
				default:
				}
			}
			b.mu.Unlock()
		}
	}
}
