package signal

import (
	"math/rand"
	"sync"
)

// NoiseSource adds jitter to scorer output for exploration experiments.
// The default pipeline uses NoNoise; scoring stays fully deterministic
// unless a source is injected explicitly.
type NoiseSource interface {
	Jitter(scorer string) float64
}

// NoNoise is the default, deterministic source.
type NoNoise struct{}

func (NoNoise) Jitter(string) float64 { return 0 }

// SeededNoise produces uniform jitter in [-amplitude, amplitude] from an
// explicit seed, so experiment runs stay reproducible.
type SeededNoise struct {
	amplitude float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededNoise creates a seeded noise source.
func NewSeededNoise(amplitude float64, seed int64) *SeededNoise {
	return &SeededNoise{
		amplitude: amplitude,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (n *SeededNoise) Jitter(string) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return (n.rng.Float64()*2 - 1) * n.amplitude
}
