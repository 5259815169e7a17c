package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	InterpretationsTotal  uint64
	InterpretationsFailed uint64
	ModelRetries          uint64

	mu           sync.Mutex
	failuresKind map[string]uint64

	StartTime time.Time
}

var globalMetrics = newMetrics()

func newMetrics() *Metrics {
	return &Metrics{StartTime: time.Now(), failuresKind: make(map[string]uint64)}
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementInterpretations counts every interpretation attempted by the API.
func IncrementInterpretations() {
	atomic.AddUint64(&globalMetrics.InterpretationsTotal, 1)
}

// IncrementInterpretationFailures counts failed interpretations per error kind.
func IncrementInterpretationFailures(kind string) {
	atomic.AddUint64(&globalMetrics.InterpretationsFailed, 1)
	globalMetrics.mu.Lock()
	globalMetrics.failuresKind[kind]++
	globalMetrics.mu.Unlock()
}

// IncrementRetries matches retry.Client.OnRetry.
func IncrementRetries(attempt int, err error) {
	atomic.AddUint64(&globalMetrics.ModelRetries, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	globalMetrics.mu.Lock()
	byKind := make(map[string]uint64, len(globalMetrics.failuresKind))
	for k, v := range globalMetrics.failuresKind {
		byKind[k] = v
	}
	globalMetrics.mu.Unlock()

	return map[string]interface{}{
		"requests_total":          atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":    atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":        atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":         atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"interpretations_total":   atomic.LoadUint64(&globalMetrics.InterpretationsTotal),
		"interpretations_failed":  atomic.LoadUint64(&globalMetrics.InterpretationsFailed),
		"interpretation_failures": byKind,
		"model_retries":           atomic.LoadUint64(&globalMetrics.ModelRetries),
		"uptime_seconds":          time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
