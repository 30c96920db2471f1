package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New("test")

	m.RecordTurn("ok", 300*time.Millisecond)
	m.RecordTurn("ok", time.Second)
	m.RecordTurn("completion_error", time.Second)
	m.RecordBooking(PathTag)
	m.RecordBooking(PathFallback)
	m.RecordBooking(PathTag)
	m.RecordConflict()
	m.RecordIntent("BOOKED", true)
	m.RecordIntent("BOOKED", false)
	m.RecordError("transcription")
	m.SetSessions(3)
	m.RecordCall("start", "")
	m.RecordHTTP("POST", 200)
	m.RecordTokens("openai", 10, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("completion_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BookingsTotal.WithLabelValues(PathTag)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingsTotal.WithLabelValues(PathFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsTotal.WithLabelValues("BOOKED", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("transcription")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "200")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.CompletionTokens.WithLabelValues("openai", "input")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTurn("ok", time.Second)
		m.RecordBooking(PathTag)
		m.RecordConflict()
		m.RecordIntent("END_CALL", true)
		m.RecordError("ledger")
		m.SetSessions(1)
		m.RecordCall("end", "booked")
		m.RecordHTTP("GET", 404)
		m.RecordTokens("openai", 1, 1)
	})
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New("")
	m.RecordBooking(PathTag)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `meetbot_bookings_total{path="tag"} 1`)
}
