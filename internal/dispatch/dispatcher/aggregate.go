package dispatcher

import (
	"sort"
	"strconv"

	"rivoj/internal/dispatch/model"
	"rivoj/internal/judgeapi"
)

// aggregate folds the worker's per-test-case records into the submission
// verdict and statistic. Workers may return records out of submission order
// because test cases run in parallel, so records are sorted by index first.
func aggregate(results []judgeapi.TestCaseResult, problem *model.Problem) ([]judgeapi.TestCaseResult, judgeapi.Verdict, model.StatisticInfo) {
	sorted := make([]judgeapi.TestCaseResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return testCaseIndex(sorted[i].TestCase) < testCaseIndex(sorted[j].TestCase)
	})

	var stat model.StatisticInfo
	failedCount := 0
	firstFailing := judgeapi.VerdictAccepted
	for _, r := range sorted {
		if r.CPUTime > stat.TimeCost {
			stat.TimeCost = r.CPUTime
		}
		if r.Memory > stat.MemoryCost {
			stat.MemoryCost = r.Memory
		}
		if r.Result != judgeapi.VerdictAccepted {
			failedCount++
			if firstFailing == judgeapi.VerdictAccepted {
				firstFailing = r.Result
			}
		}
	}

	if problem.RuleType == model.RuleOI {
		stat.Score = oiScore(sorted, problem)
	}

	switch {
	case failedCount == 0:
		return sorted, judgeapi.VerdictAccepted, stat
	case problem.RuleType == model.RuleACM || failedCount == len(sorted):
		return sorted, firstFailing, stat
	default:
		return sorted, judgeapi.VerdictPartiallyAccepted, stat
	}
}

// oiScore sums the authored score of every accepted test case.
func oiScore(sorted []judgeapi.TestCaseResult, problem *model.Problem) int64 {
	var score int64
	for _, r := range sorted {
		if r.Result != judgeapi.VerdictAccepted {
			continue
		}
		idx := testCaseIndex(r.TestCase) - 1
		if idx >= 0 && idx < len(problem.TestCaseScore) {
			score += problem.TestCaseScore[idx].Score
		}
	}
	return score
}

// testCaseIndex parses the 1-based test case label. Unparsable labels sort
// last.
func testCaseIndex(label string) int {
	n, err := strconv.Atoi(label)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
