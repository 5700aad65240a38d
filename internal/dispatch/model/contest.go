package model

import "time"

// Contest status values, derived from the clock.
const (
	ContestNotStarted = 1
	ContestUnderway   = 0
	ContestEnded      = -1
)

// Contest carries the judge-facing fields of a contest record.
type Contest struct {
	ID           int64
	CreatedByID  int64
	RuleType     string
	RealTimeRank bool
	StartTime    time.Time
	EndTime      time.Time
}

// Status returns the contest phase at now.
func (c *Contest) Status(now time.Time) int {
	if now.Before(c.StartTime) {
		return ContestNotStarted
	}
	if now.After(c.EndTime) {
		return ContestEnded
	}
	return ContestUnderway
}

// ACMProblemInfo is one problem's entry in an ACM rank row.
type ACMProblemInfo struct {
	IsAC        bool  `json:"is_ac"`
	ACTime      int64 `json:"ac_time"`
	ErrorNumber int64 `json:"error_number"`
	IsFirstAC   bool  `json:"is_first_ac"`
}

// ACMContestRank is the per-user-per-contest aggregate for ACM ranking.
type ACMContestRank struct {
	UserID           int64
	ContestID        int64
	SubmissionNumber int64
	AcceptedNumber   int64
	// TotalTime is the summed penalty in seconds over accepted problems.
	TotalTime int64
	// SubmissionInfo maps problem id (decimal string) to per-problem state.
	SubmissionInfo map[string]ACMProblemInfo
}

// OIContestRank is the per-user-per-contest aggregate for OI ranking.
type OIContestRank struct {
	UserID           int64
	ContestID        int64
	SubmissionNumber int64
	TotalScore       int64
	// SubmissionInfo maps problem id (decimal string) to the recorded score.
	SubmissionInfo map[string]int64
}
