package dispatch

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kilianp07/dockyard/core/factory"
	"github.com/kilianp07/dockyard/core/model"
)

// Selector picks one truck and one dock from the sweep snapshots. Only
// type-compatible pairs may be returned.
type Selector interface {
	Select(queue []model.QueueEntry, docks []model.Dock) (model.QueueEntry, model.Dock, bool)
}

// Built-in policy names.
const (
	PolicyRandom = "random"
	PolicyFIFO   = "fifo"
)

var selectors = factory.NewRegistry[Selector]()

func init() {
	selectors.MustRegister(PolicyRandom, func(conf map[string]any) (Selector, error) {
		var c struct {
			Seed uint64 `json:"seed"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRandomSelector(c.Seed), nil
	})
	selectors.MustRegister(PolicyFIFO, func(map[string]any) (Selector, error) {
		return FIFOSelector{}, nil
	})
}

// RegisterSelector adds a selection policy.
func RegisterSelector(name string, f factory.Factory[Selector]) error {
	return selectors.Register(name, f)
}

// NewSelector builds the configured policy.
func NewSelector(cfg factory.ModuleConfig) (Selector, error) {
	if cfg.Type == "" {
		cfg.Type = PolicyRandom
	}
	return selectors.Create(cfg)
}

// compatible returns the docks able to serve e.
func compatible(e model.QueueEntry, docks []model.Dock) []model.Dock {
	var out []model.Dock
	for _, d := range docks {
		if d.Status == model.DockAvailable && d.Type.Serves(e.Type) {
			out = append(out, d)
		}
	}
	return out
}

// RandomSelector picks a random servable truck and a random compatible dock.
type RandomSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSelector seeds the generator; seed 0 uses the clock.
func NewRandomSelector(seed uint64) *RandomSelector {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomSelector{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomSelector) Select(queue []model.QueueEntry, docks []model.Dock) (model.QueueEntry, model.Dock, bool) {
	type pair struct {
		entry model.QueueEntry
		docks []model.Dock
	}
	var servable []pair
	for _, e := range queue {
		if c := compatible(e, docks); len(c) > 0 {
			servable = append(servable, pair{e, c})
		}
	}
	if len(servable) == 0 {
		return model.QueueEntry{}, model.Dock{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := servable[s.rnd.IntN(len(servable))]
	return p.entry, p.docks[s.rnd.IntN(len(p.docks))], true
}

// FIFOSelector takes the earliest servable arrival. It prefers a dock of the
// exact type so priority docks stay free for trucks that need them.
type FIFOSelector struct{}

func (FIFOSelector) Select(queue []model.QueueEntry, docks []model.Dock) (model.QueueEntry, model.Dock, bool) {
	ordered := append([]model.QueueEntry(nil), queue...)
	model.SortQueue(ordered)
	for _, e := range ordered {
		c := compatible(e, docks)
		if len(c) == 0 {
			continue
		}
		model.SortDocks(c)
		for _, d := range c {
			if string(d.Type) == string(e.Type) {
				return e, d, true
			}
		}
		return e, c[0], true
	}
	return model.QueueEntry{}, model.Dock{}, false
}
