// Package aggregator reduces a full set of scenario results into the
// report statistics. Pure: callers pass the complete result set, so the
// output is independent of result arrival order.
package aggregator

import (
	"math"
	"sort"
	"time"

	"collection-agent-go/internal/types"
)

func Aggregate(results []types.ScenarioResult) types.AggregateReport {
	rep := types.AggregateReport{
		Total:        len(results),
		PerClient:    map[string]types.ClientStats{},
		FailureModes: map[types.FailureReason]int{},
	}

	var latencies []time.Duration
	byClient := map[string][]types.ScenarioResult{}
	handoffs := 0

	for _, r := range results {
		if r.Passed {
			rep.Passed++
		} else if r.FailureReason != "" {
			rep.FailureModes[r.FailureReason]++
		}
		if r.FailureReason == types.FailureHandoff {
			handoffs++
		}
		latencies = append(latencies, r.ResponseTimes...)
		byClient[r.ClientID] = append(byClient[r.ClientID], r)
	}

	if rep.Total > 0 {
		rep.SuccessRate = float64(rep.Passed) / float64(rep.Total)
		rep.HandoffRate = float64(handoffs) / float64(rep.Total)
	}
	rep.AvgResponseTime, rep.P95ResponseTime, rep.MaxResponseTime = latencyStats(latencies)

	for id, rs := range byClient {
		stats := types.ClientStats{Total: len(rs)}
		var clientLatencies []time.Duration
		for _, r := range rs {
			if r.Passed {
				stats.Passed++
			}
			clientLatencies = append(clientLatencies, r.ResponseTimes...)
		}
		stats.SuccessRate = float64(stats.Passed) / float64(stats.Total)
		stats.AvgResponseTime, stats.P95ResponseTime, stats.MaxResponseTime = latencyStats(clientLatencies)
		rep.PerClient[id] = stats
	}

	return rep
}

func latencyStats(latencies []time.Duration) (avg, p95, max time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	avg = sum / time.Duration(len(sorted))
	p95 = nearestRank(sorted, 95)
	max = sorted[len(sorted)-1]
	return avg, p95, max
}

// nearestRank picks the p-th percentile of a sorted sample by the
// nearest-rank rule: element ceil(p/100*n), 1-based.
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
