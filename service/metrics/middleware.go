package metrics

import (
	"net/http"
	"time"
)

// HTTPMetricsMiddleware records request duration and status for every request
// passing through it. handlerName should be the route pattern, not the raw
// path, so withdrawal ids do not explode label cardinality.
func HTTPMetricsMiddleware(m *Metrics, handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.RecordHTTPRequest(handlerName, r.Method, wrapped.statusCode, time.Since(start).Seconds())
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if !w.wrote {
		w.statusCode = statusCode
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Timer returns a func that reports the time elapsed since start.
//
//	defer metrics.Timer(time.Now(), func(d float64) {
//	    m.RecordSomething(d)
//	})()
func Timer(start time.Time, recordFunc func(float64)) func() {
	return func() {
		recordFunc(time.Since(start).Seconds())
	}
}

// StageTimer times one withdrawal pipeline stage. Call the returned func with
// the stage's error.
func (m *Metrics) StageTimer(stage string) func(error) {
	start := time.Now()
	return func(err error) {
		m.RecordWithdrawalStage(stage, time.Since(start).Seconds(), err)
	}
}
