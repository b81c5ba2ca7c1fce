package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	// register every enricher metric
	_ "github.com/Sternrassler/people-enricher/pkg/cache"
	_ "github.com/Sternrassler/people-enricher/pkg/client"
	_ "github.com/Sternrassler/people-enricher/pkg/enrich"
	_ "github.com/Sternrassler/people-enricher/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool, len(Names))
	for _, name := range Names {
		if !strings.HasPrefix(name, "enrich_") {
			t.Errorf("metric %q lacks the enrich_ prefix", name)
		}
		if seen[name] {
			t.Errorf("metric %q listed twice", name)
		}
		seen[name] = true
	}
}

func TestHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}

	// Metrics without labels are exported even before first use
	for _, name := range []string{
		"enrich_fetches_in_flight",
		"enrich_run_duration_seconds",
		"enrich_backoff_pauses_total",
		"enrich_cache_hits_total",
		"enrich_client_request_duration_seconds",
	} {
		if !strings.Contains(bodyStr, name) {
			t.Errorf("Expected metrics output to contain %s", name)
		}
	}
}
