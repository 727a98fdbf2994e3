package provider

import (
	"sync"
	"time"
)

// tokenBucket throttles outbound calls to the remote documentation host
// and registry. Adapted from the teacher's web/ratelimit.go, which used
// the same token-bucket shape to throttle *inbound* requests per
// client IP; here there's a single bucket shared by every call a
// RemoteSource makes, pacing requests against the remote host as a
// whole rather than per caller.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   int
	lastFill time.Time
	rate     int
	interval time.Duration
	burst    int
}

func newTokenBucket(rate int, interval time.Duration, burst int) *tokenBucket {
	return &tokenBucket{tokens: burst, lastFill: time.Now(), rate: rate, interval: interval, burst: burst}
}

// wait blocks until a token is available, refilling based on elapsed
// time. Blocking call sites are exactly where spec.md §5 says a
// provider may suspend the calling thread.
func (b *tokenBucket) wait() {
	for {
		b.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(b.lastFill)
		if refill := int(elapsed / b.interval) * b.rate; refill > 0 {
			b.tokens += refill
			if b.tokens > b.burst {
				b.tokens = b.burst
			}
			b.lastFill = now
		}
		if b.tokens > 0 {
			b.tokens--
			b.mu.Unlock()
			return
		}
		wait := b.interval
		b.mu.Unlock()
		time.Sleep(wait)
	}
}
