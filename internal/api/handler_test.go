package api

import (
	"NetDeviation/internal/logging"
	"NetDeviation/internal/metrics"
	"NetDeviation/internal/model"
	"NetDeviation/internal/snapshot"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, string, *metrics.Metrics) {
	t.Helper()
	root := t.TempDir()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return NewRouter(root, reg, logging.Discard()), root, m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLatestSummary(t *testing.T) {
	h, root, _ := newTestRouter(t)
	w := snapshot.NewFileWriter(root)
	require.NoError(t, w.WriteSummary(&model.TrafficSummary{
		RunID: "b1", Kind: model.KindBaseline, EndTime: time.Now(), TotalCount: 42,
	}))

	rec := get(t, h, "/api/v1/summaries/baseline/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.TrafficSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(42), got.TotalCount)

	rec = get(t, h, "/api/v1/summaries/attack/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/v1/summaries/weekly/latest")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestDeviationAndAttacks(t *testing.T) {
	h, root, _ := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/deviation/latest").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/attacks/latest").Code)

	w := snapshot.NewFileWriter(root)
	require.NoError(t, w.WriteDeviation(&model.DeviationResult{ComputedAt: time.Now(), TotalPacketIncreasePct: 500}))
	require.NoError(t, w.WriteAttackLog(&model.AttackLog{EndTime: time.Now(), Target: "127.0.0.1",
		Records: []model.AttackRecord{{Module: "syn_flood", Magnitude: 200}}}))

	rec := get(t, h, "/api/v1/deviation/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_packet_increase_pct":500`)

	rec = get(t, h, "/api/v1/attacks/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attacks_performed"`)
}

func TestReport(t *testing.T) {
	h, root, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/report").Code)

	w := snapshot.NewFileWriter(root)
	now := time.Now()
	require.NoError(t, w.WriteSummary(&model.TrafficSummary{Kind: model.KindBaseline, EndTime: now, TotalCount: 100}))
	require.NoError(t, w.WriteSummary(&model.TrafficSummary{Kind: model.KindAttack, EndTime: now, TotalCount: 600}))

	rec := get(t, h, "/api/v1/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "500.0%")
}

func TestHealthAndMetrics(t *testing.T) {
	h, _, m := newTestRouter(t)
	m.PacketSkipped(model.KindBaseline)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `netdev_packets_skipped_total{kind="baseline"} 1`)
}
