package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(commits.WithLabelValues("application"))
	RecordCommit("application")
	assert.Equal(t, before+1, testutil.ToFloat64(commits.WithLabelValues("application")))

	beforeAccepted := testutil.ToFloat64(applications.WithLabelValues("accepted"))
	RecordApplications("accepted", 3)
	RecordApplications("accepted", 0)
	assert.Equal(t, beforeAccepted+3, testutil.ToFloat64(applications.WithLabelValues("accepted")))

	RecordTranche("funded")
	RecordFinalize("greedy_allocation")
	RecordSweep(120 * time.Millisecond)
}

func TestHandler_ExposesSettlementMetrics(t *testing.T) {
	RecordTranche("unfunded")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `brickshare_settlement_tranches_total{outcome="unfunded"}`))
}
