package app

import (
	"context"
	"net/http"
	"time"

	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/router"
	"github.com/putto11262002/gymchat/pkg/syncmap"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user. Buckets of users that stay
// idle are dropped by Prune.
type RateLimiter struct {
	visitors *syncmap.Map[string, *visitor]
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter allows perSecond events per user with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		visitors: syncmap.New[string, *visitor](),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	v := l.visitors.LoadAndStore(key, func(v *visitor, ok bool) *visitor {
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		}
		v.lastSeen = l.now()
		return v
	})
	return v.limiter
}

func (l *RateLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Len returns the number of users with a live bucket.
func (l *RateLimiter) Len() int {
	return l.visitors.Len()
}

// Prune drops the buckets of users not seen for longer than idle.
// idle should be at least the time a bucket takes to refill, otherwise a
// user can regain a full burst early.
func (l *RateLimiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	return l.visitors.DeleteFunc(func(_ string, v *visitor) bool {
		return v.lastSeen.Before(cutoff)
	})
}

// RefillTime is how long an empty bucket takes to fill up again.
func (l *RateLimiter) RefillTime() time.Duration {
	if l.limit == rate.Inf {
		return 0
	}
	return time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
}

// Run prunes idle buckets every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune(idle)
		}
	}
}

var errRateLimited = router.NewJsonError(http.StatusTooManyRequests, "rate limit exceeded")

// Limit wraps a handler so that it only runs while the signed in user has
// tokens left. It must run after the JWTMiddleware.
func (l *RateLimiter) Limit(next router.HandlerFunc) router.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		session := core.SessionFromRequest(r)
		if !l.Allow(session.UserID) {
			return errRateLimited
		}
		return next(w, r)
	}
}
