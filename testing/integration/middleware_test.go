package integration

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// TimingMiddleware times every request in a tracked span.
func TimingMiddleware(tracer *metricz.Tracer, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.StartSpan(r.Context(), name)
			defer span.Finish()
			span.SetTag("http.method", r.Method)
			span.WithTimer().InScope(func() {
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
	}
}

// RetryMiddleware re-enters one tracked span per attempt, so its counter
// reports attempts and its duration covers first try to last.
func RetryMiddleware(tracer *metricz.Tracer, clock clockz.Clock, maxRetries int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.StartSpan(r.Context(), "retry.attempt")
			defer span.Finish()
			span.WithTimer()

			for attempt := 0; attempt <= maxRetries; attempt++ {
				rec := httptest.NewRecorder()
				span.InScope(func() {
					next.ServeHTTP(rec, r.WithContext(ctx))
				})
				if rec.Code < 500 || attempt == maxRetries {
					w.WriteHeader(rec.Code)
					_, _ = w.Write(rec.Body.Bytes())
					return
				}
				// Backoff happens outside the span but inside the measured window.
				if fake, ok := clock.(*clockz.FakeClock); ok {
					fake.Advance(100 * time.Millisecond)
				}
			}
		})
	}
}

func TestTimingMiddleware(t *testing.T) {
	s := NewStack(t)

	handler := TimingMiddleware(s.Tracer, "http.request")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.Clock.Advance(25 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/yaks", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", rec.Code)
		}
	}

	if got := s.Collector.Counters()["http.request"]; got != 3 {
		t.Errorf("Expected 3 requests counted, got %d", got)
	}
	durations := s.Collector.Durations()["http.request"+metricz.DurationSuffix]
	if len(durations) != 3 {
		t.Fatalf("Expected 3 durations, got %d", len(durations))
	}
	for _, d := range durations {
		if d != 25*time.Millisecond {
			t.Errorf("Expected 25ms, got %v", d)
		}
	}
}

func TestRetryMiddlewareCountsAttempts(t *testing.T) {
	s := NewStack(t)

	calls := 0
	flaky := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		s.Clock.Advance(10 * time.Millisecond)
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := RetryMiddleware(s.Tracer, s.Clock, 5)(flaky)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pay", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	if got := s.Collector.Counters()["retry.attempt"]; got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
	// Three 10ms attempts plus two 100ms backoffs.
	durations := s.Collector.Durations()["retry.attempt_ns"]
	if len(durations) != 1 || durations[0] != 230*time.Millisecond {
		t.Errorf("Expected one 230ms duration, got %v", durations)
	}
}

func TestNestedMiddlewareOnlyTimesTrackedSpans(t *testing.T) {
	s := NewStack(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Untracked child span.
		_, span := s.Tracer.StartSpan(r.Context(), "db.query")
		span.InScope(func() { s.Clock.Advance(time.Millisecond) })
		span.Finish()
		w.WriteHeader(http.StatusOK)
	})

	handler := TimingMiddleware(s.Tracer, "outer")(inner)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	counters := s.Collector.Counters()
	if _, ok := counters["db.query"]; ok {
		t.Error("Untracked span should not be reported")
	}
	if counters["outer"] != 1 {
		t.Errorf("Expected outer counted once, got %d", counters["outer"])
	}
}
