package connection

import (
	"math/rand"
	"time"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// nextReconnectDelay computes the delay before reconnect attempt `attempt`
// (1-based). The curve scales the base delay by how much of the attempt
// budget is spent, plus a small random jitter. The result is clamped so it
// never decreases below the previous delay and never exceeds the ceiling.
func nextReconnectDelay(opts domain.EffectiveOptions, attempt int, prev time.Duration, jitterSource func() float64) time.Duration {
	base := opts.BaseReconnectDelay
	if base <= 0 {
		base = time.Second
	}

	spent := float64(attempt) / float64(opts.MaxReconnectAttempts)
	if spent > 1 {
		spent = 1
	}

	delay := time.Duration(float64(base) * (1 + spent*opts.BackoffFactor))

	if jitterSource == nil {
		jitterSource = rand.Float64
	}
	jitter := time.Duration(jitterSource() * 0.1 * float64(base))
	delay += jitter

	if delay < prev {
		delay = prev
	}
	if opts.MaxReconnectDelay > 0 && delay > opts.MaxReconnectDelay {
		delay = opts.MaxReconnectDelay
	}
	return delay
}
