package input

import (
	"math/rand"
	"sync"

	"snapsync/pkg/proto"
)

// Provider answers whether an intent is active during the current tick.
type Provider interface {
	Active(c proto.Command) bool
}

// Drainer is implemented by edge-triggered providers. Drain returns the
// intents latched so far and resets the latch in one step, so a press that
// arrives while a tick is sampled lands in the next tick.
type Drainer interface {
	Drain() Set
}

// Sample builds this tick's batch: one command per active intent, checked
// in proto.Commands order (move-right, move-left, jump).
func Sample(p Provider) proto.Batch {
	if d, ok := p.(Drainer); ok {
		p = d.Drain()
	}
	var batch proto.Batch
	for _, c := range proto.Commands {
		if p.Active(c) {
			batch = append(batch, c)
		}
	}
	return batch
}

// Set is a fixed set of active intents.
type Set map[proto.Command]bool

func (s Set) Active(c proto.Command) bool { return s[c] }

// Random activates each intent independently with probability P.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
	P   float64
}

func NewRandom(seed int64, p float64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed)), P: p}
}

func (r *Random) Active(proto.Command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.P
}
