// Package report renders a baseline/attack comparison for humans: a
// tablewriter text report for the terminal and an HTML body for email.
package report

import (
	"NetDeviation/internal/model"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// topPortRows limits the port table in both renderings.
const topPortRows = 10

// Report is everything one comparison report shows. Log may be nil.
type Report struct {
	Baseline    *model.TrafficSummary
	Attack      *model.TrafficSummary
	Log         *model.AttackLog
	Deviation   model.DeviationResult
	GeneratedAt time.Time
}

type portRow struct {
	Port     uint16
	Baseline uint64
	Attack   uint64
}

type countRow struct {
	Metric   string
	Baseline string
	Attack   string
	Change   string
}

// WriteText renders the report as terminal tables.
func WriteText(w io.Writer, r Report) error {
	fmt.Fprintf(w, "Network deviation report (%s)\n", r.GeneratedAt.Format(time.RFC1123))
	fmt.Fprintf(w, "Baseline run %s, attack run %s\n\n", r.Baseline.RunID, r.Attack.RunID)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Baseline", "Attack", "Change"})
	table.SetAutoWrapText(false)
	for _, row := range countRows(r) {
		table.Append([]string{row.Metric, row.Baseline, row.Attack, row.Change})
	}
	table.Render()

	if warn := incompleteNote(r); warn != "" {
		fmt.Fprintln(w, warn)
	}

	fmt.Fprintln(w, "\nTop destination ports")
	ports := tablewriter.NewWriter(w)
	ports.SetHeader([]string{"Port", "Baseline", "Attack"})
	for _, row := range mergePorts(r.Baseline.PortFrequency, r.Attack.PortFrequency, topPortRows) {
		ports.Append([]string{strconv.Itoa(int(row.Port)), formatCount(row.Baseline), formatCount(row.Attack)})
	}
	ports.Render()

	if r.Log != nil {
		fmt.Fprintf(w, "\nAttacks performed against %s\n", r.Log.Target)
		attacks := tablewriter.NewWriter(w)
		attacks.SetHeader([]string{"Module", "Type", "Magnitude", "Responsive Ports", "Status"})
		attacks.SetAutoWrapText(false)
		for _, rec := range r.Log.Records {
			attacks.Append([]string{rec.Module, rec.Type, strconv.Itoa(rec.Magnitude),
				joinPorts(rec.ResponsivePorts), status(rec)})
		}
		attacks.Render()
	}
	return nil
}

func countRows(r Report) []countRow {
	b, a, d := r.Baseline, r.Attack, r.Deviation
	return []countRow{
		{"Total packets", formatCount(b.TotalCount), formatCount(a.TotalCount), formatPct(d.TotalPacketIncreasePct)},
		{"TCP", formatCount(b.TCPCount), formatCount(a.TCPCount), formatPct(d.TCPIncreasePct)},
		{"UDP", formatCount(b.UDPCount), formatCount(a.UDPCount), formatPct(d.UDPIncreasePct)},
		{"ICMP", formatCount(b.ICMPCount), formatCount(a.ICMPCount), formatPct(d.ICMPIncreasePct)},
		{"Other IP", formatCount(b.OtherCount), formatCount(a.OtherCount), ""},
		{"Unique sources", strconv.Itoa(b.UniqueSourceCount), strconv.Itoa(a.UniqueSourceCount), ""},
		{"Unique destinations", strconv.Itoa(b.UniqueDestinationCount), strconv.Itoa(a.UniqueDestinationCount), ""},
		{"Avg packets/s", formatRate(d.BaselineAvgPPS), formatRate(d.AttackAvgPPS), ""},
		{"Avg packets/s (idle seconds as 0)", formatRate(d.BaselineZeroFilledAvgPPS), formatRate(d.AttackZeroFilledAvgPPS), ""},
	}
}

// mergePorts joins both port tables, ordered by attack count then baseline
// count, ties in first-seen order.
func mergePorts(baseline, attack []model.PortCount, limit int) []portRow {
	index := make(map[uint16]int)
	var rows []portRow
	for _, pc := range attack {
		index[pc.Port] = len(rows)
		rows = append(rows, portRow{Port: pc.Port, Attack: pc.Count})
	}
	for _, pc := range baseline {
		if i, ok := index[pc.Port]; ok {
			rows[i].Baseline = pc.Count
			continue
		}
		index[pc.Port] = len(rows)
		rows = append(rows, portRow{Port: pc.Port, Baseline: pc.Count})
	}
	// rows is already ordered: attack ports by descending attack count, then
	// baseline-only ports by descending baseline count.
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func incompleteNote(r Report) string {
	switch {
	case r.Baseline.Incomplete && r.Attack.Incomplete:
		return "Warning: both captures ended early; counts are partial."
	case r.Baseline.Incomplete:
		return "Warning: the baseline capture ended early (" + r.Baseline.IncompleteReason + ")."
	case r.Attack.Incomplete:
		return "Warning: the attack capture ended early (" + r.Attack.IncompleteReason + ")."
	}
	return ""
}

func status(rec model.AttackRecord) string {
	if rec.Error != "" {
		return "failed: " + rec.Error
	}
	return "ok"
}

func joinPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	s := ""
	for i, p := range ports {
		if i > 0 {
			s += ","
		}
		s += strconv.Itoa(p)
	}
	return s
}

func formatCount(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func formatPct(p float64) string {
	return fmt.Sprintf("%+.1f%%", p)
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', 2, 64)
}
