package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/feedwatch/internal/version"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedwatch_http_requests_total",
			Help: "Status server requests by route and status code.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedwatch_http_request_duration_seconds",
			Help:    "Status server request latency.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route"},
	)
	httpRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedwatch_http_rejected_total",
			Help: "Status server requests rejected before reaching a handler.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpRejected)
}

// probePaths are polled by supervisors and scrapers. They are never rate
// limited and are logged at debug level only.
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order; the first is outermost.
func Chain(handler http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

type requestIDKey struct{}

// RequestID returns the request ID stored by withRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

const maxRequestIDLen = 64

// validRequestID accepts caller IDs made of letters, digits, '-', '_' and
// '.' so they are safe to echo into headers and logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// withRequestID keeps a well-formed X-Request-ID from the caller and
// otherwise assigns a fresh UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// withAccessLog logs every request and records the HTTP metrics. Probe
// paths log at debug so a scraper does not flood the info log.
func withAccessLog(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			level := zap.InfoLevel
			if probePaths[r.URL.Path] {
				level = zap.DebugLevel
			}
			if ce := logger.Check(level, "http request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.String("path", r.URL.Path),
					zap.Int("status", rec.status),
					zap.Int("bytes", rec.bytes),
					zap.Duration("duration", elapsed),
					zap.String("request_id", RequestID(r.Context())),
				)
			}
		})
	}
}

// routeLabel returns the matched mux pattern so per-feed URLs share one
// metric series. Unmatched requests are grouped under "unmatched".
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

// withHeaders sets the response headers shared by every route. Status
// data is live, so nothing is cacheable.
func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("X-Feedwatch-Version", version.Short())
		next.ServeHTTP(w, r)
	})
}

// withRecovery turns a handler panic into a 500 problem. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func withRecovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestID(r.Context())),
				)
				writeProblem(w, r, http.StatusInternalServerError, "an unexpected error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// withPeerLimit rate limits each connecting peer. The server binds to a
// local address without a proxy in front, so the peer is taken from
// RemoteAddr only and forwarding headers are ignored.
func withPeerLimit(rps float64, burst int) Middleware {
	pl := newPeerLimiter(rate.Limit(rps), burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probePaths[r.URL.Path] || pl.allow(peerHost(r.RemoteAddr), time.Now()) {
				next.ServeHTTP(w, r)
				return
			}
			httpRejected.WithLabelValues("rate_limited").Inc()
			w.Header().Set("Retry-After", "1")
			writeProblem(w, r, http.StatusTooManyRequests, "too many requests from this peer")
		})
	}
}

// peerHost strips the port from a RemoteAddr.
func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// peerLimiter keeps one token bucket per peer. Buckets idle for longer
// than idle are swept at most once per idle period.
type peerLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	peers     map[string]*peerBucket
}

type peerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newPeerLimiter(limit rate.Limit, burst int, idle time.Duration) *peerLimiter {
	return &peerLimiter{
		limit: limit,
		burst: burst,
		idle:  idle,
		peers: make(map[string]*peerBucket),
	}
}

func (p *peerLimiter) allow(peer string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastSweep) >= p.idle {
		for key, b := range p.peers {
			if now.Sub(b.lastSeen) >= p.idle {
				delete(p.peers, key)
			}
		}
		p.lastSweep = now
	}

	b, ok := p.peers[peer]
	if !ok {
		b = &peerBucket{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.peers[peer] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (p *peerLimiter) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.peers)
}

// responseRecorder captures the status code and body size of a response.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
