package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/neomorfeo/apiplane/internal/adapter/metrics"
	"github.com/neomorfeo/apiplane/internal/domain"
)

func TestRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := metrics.New(registry)

	r.TransitionApplied(domain.KindAPI, domain.ActionStart)
	r.TransitionApplied(domain.KindAPI, domain.ActionStart)
	r.TransitionRejected(domain.KindAPI, domain.ActionStop)
	r.PreconditionFailed(domain.KindPlan)

	want := `
# HELP apiplane_lifecycle_transitions_total Lifecycle actions evaluated, by entity kind, action and outcome
# TYPE apiplane_lifecycle_transitions_total counter
apiplane_lifecycle_transitions_total{action="START",kind="api",outcome="applied"} 2
apiplane_lifecycle_transitions_total{action="STOP",kind="api",outcome="rejected"} 1
# HELP apiplane_precondition_failures_total Requests rejected because the entity changed since it was read
# TYPE apiplane_precondition_failures_total counter
apiplane_precondition_failures_total{kind="plan"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(want)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestHandler(t *testing.T) {
	r := metrics.New(prometheus.NewRegistry())
	r.PreconditionFailed(domain.KindSubscription)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `apiplane_precondition_failures_total{kind="subscription"} 1`) {
		t.Errorf("body missing counter:\n%s", body)
	}
}
