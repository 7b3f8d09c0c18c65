package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/types"
)

// WriteWorkbook writes the report as an xlsx workbook with Summary,
// Per-Client, Failure Modes and Results sheets.
func WriteWorkbook(path string, rep types.AggregateReport, results []types.ScenarioResult) error {
	log := logger.New().WithField("component", "report").WithField("path", path)

	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	summaryRows := [][]any{
		{"Metric", "Value"},
		{"Total Tests", rep.Total},
		{"Passed", rep.Passed},
		{"Success Rate", rep.SuccessRate},
		{"Hand-off Rate", rep.HandoffRate},
		{"Avg Response Time (s)", rep.AvgResponseTime.Seconds()},
		{"P95 Response Time (s)", rep.P95ResponseTime.Seconds()},
		{"Max Response Time (s)", rep.MaxResponseTime.Seconds()},
	}
	if err := writeRows(f, summary, summaryRows); err != nil {
		return err
	}

	perClient := [][]any{{"Client", "Total", "Passed", "Success Rate", "Avg (s)", "P95 (s)", "Max (s)"}}
	for _, id := range sortedClientIDs(rep.PerClient) {
		s := rep.PerClient[id]
		perClient = append(perClient, []any{
			id, s.Total, s.Passed, s.SuccessRate,
			s.AvgResponseTime.Seconds(), s.P95ResponseTime.Seconds(), s.MaxResponseTime.Seconds(),
		})
	}
	if err := addSheet(f, "Per-Client", perClient); err != nil {
		return err
	}

	failures := [][]any{{"Failure Reason", "Count"}}
	for _, fm := range sortedFailureModes(rep.FailureModes) {
		failures = append(failures, []any{string(fm.reason), fm.count})
	}
	if err := addSheet(f, "Failure Modes", failures); err != nil {
		return err
	}

	resultRows := [][]any{{"Run ID", "Scenario", "Client", "Iteration", "Passed", "Failure Reason", "Turns", "Total Time (s)"}}
	for _, r := range results {
		var total float64
		for _, d := range r.ResponseTimes {
			total += d.Seconds()
		}
		resultRows = append(resultRows, []any{
			r.RunID, r.ScenarioName, r.ClientID, r.Iteration,
			r.Passed, string(r.FailureReason), len(r.ResponseTimes), total,
		})
	}
	if err := addSheet(f, "Results", resultRows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	log.WithField("results", len(results)).Info("workbook written")
	return nil
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d on %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
