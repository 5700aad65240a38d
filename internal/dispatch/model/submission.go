package model

import (
	"time"

	"rivoj/internal/judgeapi"
)

// StatisticInfo is the per-submission aggregate stored as JSON alongside the
// verdict.
type StatisticInfo struct {
	TimeCost   int64  `json:"time_cost,omitempty"`
	MemoryCost int64  `json:"memory_cost,omitempty"`
	Score      int64  `json:"score,omitempty"`
	ErrInfo    string `json:"err_info,omitempty"`
}

// Submission is one user submission to a problem.
type Submission struct {
	ID            string
	ProblemID     int64
	UserID        int64
	Username      string
	ContestID     int64 // 0 when not a contest submission
	Language      string
	Code          string
	Result        judgeapi.Verdict
	Info          []judgeapi.TestCaseResult
	Statistic     StatisticInfo
	SharedVisible bool
	CreateTime    time.Time
}

// InContest reports whether this submission belongs to a contest.
func (s *Submission) InContest() bool {
	return s.ContestID > 0
}
