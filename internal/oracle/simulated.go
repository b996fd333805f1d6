package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/obadahasan/numbot/internal/logger"
)

// Simulated yields a random 6-digit code with a fixed probability per
// lookup. It stands in for a real SMS provider during development.
type Simulated struct {
	probability float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated builds a simulated oracle. probability is clamped to
// [0, 1]; rng may be nil, in which case a seeded source is used.
func NewSimulated(probability float64, rng *rand.Rand) *Simulated {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Simulated{probability: probability, rng: rng}
}

// CheckDelivery rolls the configured probability and fabricates a code on
// a hit.
func (s *Simulated) CheckDelivery(ctx context.Context, correlationID string) (string, error) {
	s.mu.Lock()
	hit := s.rng.Float64() < s.probability
	var code string
	if hit {
		code = fmt.Sprintf("%06d", 100000+s.rng.Intn(900000))
	}
	s.mu.Unlock()

	if !hit {
		return "", nil
	}
	logger.ORACLE.Debug("code simulated",
		slog.String("event", "oracle.check"),
		slog.String("correlation_id", correlationID),
	)
	return code, nil
}
