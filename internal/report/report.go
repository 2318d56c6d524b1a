// Package report renders a run summary for humans or machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jzx17/imgqueue/internal/logging"
	"github.com/jzx17/imgqueue/pkg/coordinator"
)

// Output formats
const (
	FormatAuto  = "auto"
	FormatTable = "table"
	FormatJSON  = "json"
)

// Resolve turns a configured format into table or json. auto picks a table
// for terminals and JSON otherwise.
func Resolve(format string, w io.Writer) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatAuto:
		if logging.IsTerminal(w) {
			return FormatTable, nil
		}
		return FormatJSON, nil
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported summary format %q", format)
	}
}

// Write renders summary to w in the given format
func Write(w io.Writer, format string, summary coordinator.Summary) error {
	resolved, err := Resolve(format, w)
	if err != nil {
		return err
	}
	if resolved == FormatJSON {
		return WriteJSON(w, summary)
	}
	_, err = io.WriteString(w, RenderTable(summary)+"\n")
	return err
}

// WriteJSON encodes summary as indented JSON
func WriteJSON(w io.Writer, summary coordinator.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonSummary{
		Summary:   summary,
		ElapsedMS: summary.Elapsed().Milliseconds(),
	})
}

type jsonSummary struct {
	coordinator.Summary
	ElapsedMS int64 `json:"elapsed_ms"`
}

// RenderTable returns the run totals followed by one row per worker
func RenderTable(summary coordinator.Summary) string {
	totals := [][]string{
		{"Run", summary.RunID},
		{"Input", summary.InputDir},
		{"Output", summary.OutputDir},
		{"Status", summary.Reason},
		{"Interrupted", strconv.FormatBool(summary.Interrupted)},
		{"Elapsed", summary.Elapsed().Round(time.Millisecond).String()},
		{"Discovered", strconv.FormatInt(summary.Discovered, 10)},
		{"Processed", strconv.FormatInt(summary.Processed, 10)},
		{"Failed", strconv.FormatInt(summary.Failed, 10)},
		{"Skipped", strconv.FormatInt(summary.Skipped, 10)},
	}
	if summary.MappingFailures > 0 {
		totals = append(totals, []string{"Mapping failures", strconv.FormatInt(summary.MappingFailures, 10)})
	}
	if summary.WalkErrors > 0 {
		totals = append(totals, []string{"Walk errors", strconv.FormatInt(summary.WalkErrors, 10)})
	}
	if summary.Retried > 0 {
		totals = append(totals,
			[]string{"Retried", strconv.FormatInt(summary.Retried, 10)},
			[]string{"Retry wait", (time.Duration(summary.RetryWaitMS) * time.Millisecond).String()},
		)
	}
	if summary.FinalQueueSize > 0 {
		totals = append(totals, []string{"Left in queue", strconv.Itoa(summary.FinalQueueSize)})
	}

	out := renderTable([]string{"Field", "Value"}, totals, []columnAlignment{alignLeft, alignLeft})
	if len(summary.WorkerStats) == 0 {
		return out
	}

	rows := make([][]string, 0, len(summary.WorkerStats))
	for _, ws := range summary.WorkerStats {
		rows = append(rows, []string{
			strconv.Itoa(ws.ID),
			strconv.FormatInt(ws.Processed, 10),
			strconv.FormatInt(ws.Failed, 10),
			strconv.FormatInt(ws.Skipped, 10),
			ws.Exit,
		})
	}
	workers := renderTable(
		[]string{"Worker", "Processed", "Failed", "Skipped", "Exit"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
	return out + "\n" + workers
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
