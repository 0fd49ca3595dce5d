package report

import (
	"NetDeviation/internal/deviation"
	"NetDeviation/internal/model"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	baseline := &model.TrafficSummary{
		RunID: "base-1", TotalCount: 100, TCPCount: 60, UDPCount: 30, ICMPCount: 10,
		PortFrequency: []model.PortCount{{Port: 443, Count: 40}, {Port: 53, Count: 20}},
		RateBuffer:    []uint64{50, 50},
	}
	attack := &model.TrafficSummary{
		RunID: "atk-1", TotalCount: 600, TCPCount: 500, UDPCount: 80, ICMPCount: 20,
		PortFrequency: []model.PortCount{{Port: 22, Count: 90}, {Port: 443, Count: 45}},
		RateBuffer:    []uint64{200, 400},
		Incomplete:    true, IncompleteReason: "interface went down",
	}
	return Report{
		Baseline:  baseline,
		Attack:    attack,
		Deviation: deviation.Compare(baseline, attack),
		Log: &model.AttackLog{
			Target: "127.0.0.1",
			Records: []model.AttackRecord{
				{Module: "banner_grab", Type: "banner_grab", Magnitude: 8, ResponsivePorts: []int{22, 80}},
				{Module: "syn_flood", Type: "syn_flood", Magnitude: 12, Error: "operation not permitted"},
			},
		},
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "+733.3%")
	assert.Contains(t, out, "+500.0%")
	assert.Contains(t, out, "22,80")
	assert.Contains(t, out, "failed: operation not permitted")
	assert.Contains(t, out, "attack capture ended early")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleReport())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>TCP</td>")
	assert.Contains(t, html, "+733.3%")
	assert.Contains(t, html, "Attacks performed against 127.0.0.1")
	assert.Contains(t, html, "March 01, 2024")
	assert.Contains(t, html, "</html>")
}

func TestWriteMarkdown(t *testing.T) {
	r := sampleReport()
	r.Log.Records[1].Error = "bad | pipe"
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "| TCP | 60 | 500 | +733.3% |")
	assert.Contains(t, out, "| 22 | 0 | 90 |")
	assert.Contains(t, out, `failed: bad \| pipe`)
	assert.Contains(t, out, "**Warning: the attack capture ended early (interface went down).**")
}

func TestMergePorts(t *testing.T) {
	rows := mergePorts(
		[]model.PortCount{{Port: 443, Count: 40}, {Port: 53, Count: 20}},
		[]model.PortCount{{Port: 22, Count: 90}, {Port: 443, Count: 45}},
		10,
	)
	assert.Equal(t, []portRow{
		{Port: 22, Attack: 90},
		{Port: 443, Baseline: 40, Attack: 45},
		{Port: 53, Baseline: 20},
	}, rows)

	assert.Len(t, mergePorts(nil, []model.PortCount{{Port: 1}, {Port: 2}, {Port: 3}}, 2), 2)
}
