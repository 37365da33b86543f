package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLocators(t *testing.T) {
	acceptedBefore := testutil.ToFloat64(locatorsTotal.WithLabelValues("accepted"))
	discardedBefore := testutil.ToFloat64(locatorsTotal.WithLabelValues("discarded"))

	RecordLocators(3, 2)

	assert.Equal(t, acceptedBefore+3, testutil.ToFloat64(locatorsTotal.WithLabelValues("accepted")))
	assert.Equal(t, discardedBefore+2, testutil.ToFloat64(locatorsTotal.WithLabelValues("discarded")))
}

func TestRecordNotification_Unattended(t *testing.T) {
	before := testutil.ToFloat64(notificationsTotal.WithLabelValues("unattended"))
	deliveredBefore := testutil.ToFloat64(notificationsTotal.WithLabelValues("delivered"))

	RecordNotification(0, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(notificationsTotal.WithLabelValues("unattended")))

	RecordNotification(2, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(notificationsTotal.WithLabelValues("unattended")))
	assert.Equal(t, deliveredBefore+2, testutil.ToFloat64(notificationsTotal.WithLabelValues("delivered")))
}

func TestRecordDrain(t *testing.T) {
	drains := testutil.ToFloat64(drainsTotal)
	paths := testutil.ToFloat64(drainedPathsTotal)

	RecordDrain(4)
	RecordDrain(0)

	assert.Equal(t, drains+2, testutil.ToFloat64(drainsTotal))
	assert.Equal(t, paths+4, testutil.ToFloat64(drainedPathsTotal))
}

func TestGauges(t *testing.T) {
	SetPendingOpens(7)
	SetSubscribers(2)
	assert.Equal(t, 7.0, testutil.ToFloat64(pendingOpens))
	assert.Equal(t, 2.0, testutil.ToFloat64(subscribers))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordCommand("take_pending_opens", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fileopen_command_invocations_total")
	assert.Contains(t, string(body), `command="take_pending_opens"`)
}
