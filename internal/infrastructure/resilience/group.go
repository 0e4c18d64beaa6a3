package resilience

import "sync"

// Group manages one breaker per upstream target, created lazily with
// a shared config.
type Group struct {
	config Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates a breaker group with the given shared config.
func NewGroup(config Config) *Group {
	return &Group{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (g *Group) Get(name string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[name]
	if !ok {
		b = New(name, g.config)
		g.breakers[name] = b
	}
	return b
}

// Execute runs fn through the named breaker.
func (g *Group) Execute(name string, fn func() error) error {
	return g.Get(name).Execute(fn)
}

// States returns the current state of every breaker in the group.
func (g *Group) States() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	states := make(map[string]string, len(g.breakers))
	for name, b := range g.breakers {
		states[name] = b.State().String()
	}
	return states
}
