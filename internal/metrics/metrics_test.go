package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{409, "4xx"},
		{500, "5xx"},
		{0, "other"},
	}
	for _, tt := range tests {
		if got := StatusClass(tt.status); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestHTTPRequestsTotalIncrements(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestsTotal.WithLabelValues("GET", "2xx").Inc()
	HTTPRequestsTotal.WithLabelValues("GET", "2xx").Inc()
	HTTPRequestsTotal.WithLabelValues("POST", "4xx").Inc()

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "2xx")); got != 2 {
		t.Errorf("GET/2xx count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "4xx")); got != 1 {
		t.Errorf("POST/4xx count = %v, want 1", got)
	}
}

func TestCacheHitMissGauges(t *testing.T) {
	CacheHitsTotal.Reset()
	CacheMissesTotal.Reset()
	CacheSize.Reset()

	CacheHitsTotal.WithLabelValues("partition").Inc()
	CacheMissesTotal.WithLabelValues("partition").Inc()
	CacheSize.WithLabelValues("partition").Set(3)

	if got := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("partition")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("partition")); got != 3 {
		t.Errorf("cache size = %v, want 3", got)
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	CircuitBreakerTransitions.Reset()
	CircuitBreakerTransitions.WithLabelValues("hmc1.example.com", "closed", "open").Inc()

	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("hmc1.example.com", "closed", "open")); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
}
