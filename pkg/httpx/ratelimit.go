package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/memberhub/memberhub/pkg/slogx"
)

// Limit is a token bucket: Requests per Window on average, up to Burst at once.
type Limit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

var (
	// StrictLimit guards credential and reset endpoints against brute force.
	// Override with RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC, RATELIMIT_STRICT_BURST.
	StrictLimit = Limit{Requests: 5, Window: time.Minute, Burst: 5}

	// StandardLimit is for authenticated reads.
	// Override with RATELIMIT_STANDARD_*.
	StandardLimit = Limit{Requests: 60, Window: time.Minute, Burst: 20}
)

// LimitFromEnv overlays RATELIMIT_{prefix}_{REQUESTS,WINDOW_SEC,BURST} from
// getenv on def. Unparseable or non-positive values are ignored.
func LimitFromEnv(getenv func(string) string, prefix string, def Limit) Limit {
	out := def
	if n, ok := positiveInt(getenv("RATELIMIT_" + prefix + "_REQUESTS")); ok {
		out.Requests = n
	}
	if n, ok := positiveInt(getenv("RATELIMIT_" + prefix + "_WINDOW_SEC")); ok {
		out.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt(getenv("RATELIMIT_" + prefix + "_BURST")); ok {
		out.Burst = n
	}
	return out
}

func positiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

// KeyFunc groups requests into rate limit buckets. An empty key bypasses the
// limiter.
type KeyFunc func(*http.Request) string

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

const maxPeekBody = 64 << 10

// JSONField keys on a top-level string field of a JSON body, lowercased. The
// body is restored so handlers can decode it again.
func JSONField(name string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[name], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// Compose joins the non-empty keys of fns with sep.
func Compose(sep string, fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimiter keeps one token bucket per key in process memory.
type RateLimiter struct {
	name    string
	limit   Limit
	key     KeyFunc
	metrics *Metrics

	buckets   sync.Map // string -> *rate.Limiter
	mu        sync.Mutex
	lastSweep time.Time
}

type RateLimitOption func(*RateLimiter)

// WithRateLimitMetrics counts rejections under the limiter's name.
func WithRateLimitMetrics(m *Metrics) RateLimitOption {
	return func(rl *RateLimiter) { rl.metrics = m }
}

func NewRateLimiter(name string, limit Limit, key KeyFunc, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{name: name, limit: limit, key: key, lastSweep: time.Now()}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if b, ok := rl.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	every := rate.Limit(float64(rl.limit.Requests) / rl.limit.Window.Seconds())
	b, _ := rl.buckets.LoadOrStore(key, rate.NewLimiter(every, rl.limit.Burst))
	rl.sweep()
	return b.(*rate.Limiter)
}

// sweep drops full buckets at most every five minutes; a full bucket has
// been idle long enough to be indistinguishable from a new one.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastSweep) < 5*time.Minute {
		return
	}
	rl.lastSweep = time.Now()

	rl.buckets.Range(func(k, v any) bool {
		if v.(*rate.Limiter).Tokens() >= float64(rl.limit.Burst) {
			rl.buckets.Delete(k)
		}
		return true
	})
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		if key == "" {
			slogx.FromContext(r.Context()).Warn("rate limit key empty, allowing request", "limiter", rl.name)
			next.ServeHTTP(w, r)
			return
		}

		b := rl.bucket(key)
		if b.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		res := b.Reserve()
		delay := res.Delay()
		res.Cancel()
		retryAfter := max(int(delay.Seconds()), 1)

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit.Requests))
		w.Header().Set("X-RateLimit-Window", rl.limit.Window.String())

		rl.metrics.rateLimited(rl.name)
		slogx.FromContext(r.Context()).Warn("rate limit exceeded",
			"limiter", rl.name,
			"path", r.URL.Path,
			"retry_after", retryAfter,
		)
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	})
}
