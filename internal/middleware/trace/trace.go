package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// HeaderRequestID carries the request id in and out of the service.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns every request an id and keeps request counters.
type Middleware struct {
	totalRequests  atomic.Int64
	totalDurations atomic.Int64 // microseconds
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // in microseconds
}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// Middleware reuses a valid incoming X-Request-ID or generates a new one,
// stores it in the request context and echoes it on the response.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))

		m.totalRequests.Add(1)
		m.totalDurations.Add(time.Since(start).Microseconds())
	})
}

func GenerateRequestID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID is GetRequestID for an incoming request.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.totalRequests.Load()
	var avg int64
	if total > 0 {
		avg = m.totalDurations.Load() / total
	}
	return Metrics{TotalRequests: total, AverageResponseTime: avg}
}
