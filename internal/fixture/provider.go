package fixture

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Provider samples paths from a Set. All methods are safe for concurrent use.
type Provider struct {
	set *Set

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewProvider wraps set with a seeded random source. A zero seed uses the
// current time.
func NewProvider(set *Set, seed int64) *Provider {
	if set == nil {
		set = New(nil)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Provider{set: set, rnd: rand.New(rand.NewSource(seed))}
}

// Set returns the underlying fixture set.
func (p *Provider) Set() *Set {
	return p.set
}

// RandomPath returns a uniformly chosen path from class.
func (p *Provider) RandomPath(class Class) (string, error) {
	paths := p.set.paths[class]
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: class %s", ErrEmptyFixtureSet, class)
	}
	p.mu.Lock()
	idx := p.rnd.Intn(len(paths))
	p.mu.Unlock()
	return paths[idx], nil
}

// RandomPathByDistribution picks a class using d and returns a random path
// from it. A single uniform draw selects the class.
func (p *Provider) RandomPathByDistribution(d Distribution) (string, error) {
	class, err := p.RandomClass(d)
	if err != nil {
		return "", err
	}
	return p.RandomPath(class)
}

// RandomClass samples a class according to d.
func (p *Provider) RandomClass(d Distribution) (Class, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	p.mu.Lock()
	draw := p.rnd.Float64() * 100
	p.mu.Unlock()
	class, ok := pick(d.cumulative(), draw)
	if !ok {
		return "", fmt.Errorf("%w: distribution assigns no weight", ErrEmptyFixtureSet)
	}
	return class, nil
}

// Intn returns a random integer in [0, n) from the provider's source.
func (p *Provider) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(n)
}
