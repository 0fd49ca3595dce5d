package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteMarkdown renders the report as a Markdown document. It is also the
// source of the HTML rendering.
func WriteMarkdown(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString("# Network Baseline vs Attack Deviation Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format("January 02, 2006 at 15:04:05"))
	fmt.Fprintf(&b, "Baseline run %s, attack run %s\n\n", code(r.Baseline.RunID), code(r.Attack.RunID))
	if note := incompleteNote(r); note != "" {
		fmt.Fprintf(&b, "**%s**\n\n", note)
	}

	b.WriteString("## Traffic\n\n")
	b.WriteString("| Metric | Baseline | Attack | Change |\n|---|---:|---:|---:|\n")
	for _, row := range countRows(r) {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", row.Metric, row.Baseline, row.Attack, cell(row.Change))
	}

	b.WriteString("\n## Top destination ports\n\n")
	b.WriteString("| Port | Baseline | Attack |\n|---:|---:|---:|\n")
	for _, row := range mergePorts(r.Baseline.PortFrequency, r.Attack.PortFrequency, topPortRows) {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", row.Port, formatCount(row.Baseline), formatCount(row.Attack))
	}

	if r.Log != nil {
		fmt.Fprintf(&b, "\n## Attacks performed against %s\n\n", r.Log.Target)
		b.WriteString("| Module | Type | Magnitude | Responsive ports | Status |\n|---|---|---:|---|---|\n")
		for _, rec := range r.Log.Records {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", rec.Module, rec.Type, strconv.Itoa(rec.Magnitude),
				joinPorts(rec.ResponsivePorts), cell(status(rec)))
		}
		if !r.Log.EndTime.IsZero() {
			fmt.Fprintf(&b, "\nSequence ran for %s.\n", r.Log.EndTime.Sub(r.Log.StartTime).Round(time.Millisecond))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// cell keeps a value from breaking the table row it is placed in.
func cell(s string) string {
	if s == "" {
		return " "
	}
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func code(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + s + "`"
}
