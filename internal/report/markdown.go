// Package report renders an AggregateReport for humans: a markdown
// summary and an xlsx workbook. Rendering is presentation only; all
// numbers come in precomputed.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/types"
)

// transcript exchanges shown per example
const exampleTurns = 10

// RenderMarkdown builds the markdown report: executive summary, per-client
// breakdown, failure modes, and one example transcript per notable outcome.
func RenderMarkdown(rep types.AggregateReport, results []types.ScenarioResult, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Debt Collection Agent - Test Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", generatedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Executive Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Tests | %d |\n", rep.Total)
	fmt.Fprintf(&b, "| Passed | %d |\n", rep.Passed)
	fmt.Fprintf(&b, "| **Success Rate** | **%.1f%%** |\n", rep.SuccessRate*100)
	fmt.Fprintf(&b, "| Hand-off Rate | %.1f%% |\n", rep.HandoffRate*100)
	fmt.Fprintf(&b, "| Avg Response Time | %.2fs |\n", rep.AvgResponseTime.Seconds())
	fmt.Fprintf(&b, "| P95 Response Time | %.2fs |\n", rep.P95ResponseTime.Seconds())
	fmt.Fprintf(&b, "| Max Response Time | %.2fs |\n", rep.MaxResponseTime.Seconds())
	b.WriteString("\n")

	b.WriteString("## Results by Client\n\n")
	for _, id := range sortedClientIDs(rep.PerClient) {
		stats := rep.PerClient[id]
		fmt.Fprintf(&b, "### %s\n", id)
		fmt.Fprintf(&b, "- **Tests Run:** %d\n", stats.Total)
		fmt.Fprintf(&b, "- **Success Rate:** %.1f%%\n", stats.SuccessRate*100)
		fmt.Fprintf(&b, "- **Avg Response Time:** %.2fs\n\n", stats.AvgResponseTime.Seconds())
	}

	b.WriteString("## Notable Failure Modes\n\n")
	if len(rep.FailureModes) == 0 {
		b.WriteString("None - all tests passed.\n\n")
	} else {
		for _, fm := range sortedFailureModes(rep.FailureModes) {
			fmt.Fprintf(&b, "- `%s`: %d\n", fm.reason, fm.count)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Example Test Transcripts\n\n")
	if ex := firstResult(results, true); ex != nil {
		fmt.Fprintf(&b, "### Passed: %s (%s)\n\n", ex.ScenarioName, ex.ClientID)
		writeTranscript(&b, ex.Transcript)
	}
	if ex := firstResult(results, false); ex != nil {
		fmt.Fprintf(&b, "### Failed: %s (%s)\n\n", ex.ScenarioName, ex.ClientID)
		fmt.Fprintf(&b, "**Failure reason:** `%s`\n\n", ex.FailureReason)
		writeTranscript(&b, ex.Transcript)
	}

	b.WriteString("## Methodology\n\n")
	b.WriteString("Each scenario drives a fresh session through its scripted user turns.\n")
	b.WriteString("A test passes when every turn generates without error and the session\n")
	b.WriteString("reaches a proper close by the time the script is exhausted.\n")

	return b.String()
}

// WriteMarkdown renders the report and writes it to path.
func WriteMarkdown(path string, rep types.AggregateReport, results []types.ScenarioResult) error {
	log := logger.New().WithField("component", "report").WithField("path", path)
	if err := os.WriteFile(path, []byte(RenderMarkdown(rep, results, time.Now())), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info("markdown report written")
	return nil
}

func writeTranscript(b *strings.Builder, transcript []types.Turn) {
	b.WriteString("```\n")
	for i, turn := range transcript {
		if i >= exampleTurns {
			b.WriteString("...\n")
			break
		}
		who := "Client"
		if turn.Speaker == types.SpeakerAgent {
			who = "Agent"
		}
		fmt.Fprintf(b, "%s: %s\n", who, clip(turn.Text, 120))
	}
	b.WriteString("```\n\n")
}

func firstResult(results []types.ScenarioResult, passed bool) *types.ScenarioResult {
	for i := range results {
		if results[i].Passed == passed {
			return &results[i]
		}
	}
	return nil
}

func sortedClientIDs(perClient map[string]types.ClientStats) []string {
	ids := make([]string, 0, len(perClient))
	for id := range perClient {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type failureMode struct {
	reason types.FailureReason
	count  int
}

func sortedFailureModes(modes map[types.FailureReason]int) []failureMode {
	out := make([]failureMode, 0, len(modes))
	for reason, count := range modes {
		out = append(out, failureMode{reason, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].reason < out[j].reason
	})
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
