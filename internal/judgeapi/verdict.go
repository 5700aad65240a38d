package judgeapi

// Verdict is the judge outcome for one test case or a whole submission.
// Values are part of the wire and database contract and must not change.
type Verdict int

const (
	VerdictCompileError          Verdict = -2
	VerdictWrongAnswer           Verdict = -1
	VerdictAccepted              Verdict = 0
	VerdictCPUTimeLimitExceeded  Verdict = 1
	VerdictRealTimeLimitExceeded Verdict = 2
	VerdictMemoryLimitExceeded   Verdict = 3
	VerdictRuntimeError          Verdict = 4
	VerdictSystemError           Verdict = 5
	VerdictPending               Verdict = 6
	VerdictJudging               Verdict = 7
	// VerdictPartiallyAccepted is submission-level only, never per test case.
	VerdictPartiallyAccepted Verdict = 8
)

var verdictNames = map[Verdict]string{
	VerdictCompileError:          "COMPILE_ERROR",
	VerdictWrongAnswer:           "WRONG_ANSWER",
	VerdictAccepted:              "ACCEPTED",
	VerdictCPUTimeLimitExceeded:  "CPU_TIME_LIMIT_EXCEEDED",
	VerdictRealTimeLimitExceeded: "REAL_TIME_LIMIT_EXCEEDED",
	VerdictMemoryLimitExceeded:   "MEMORY_LIMIT_EXCEEDED",
	VerdictRuntimeError:          "RUNTIME_ERROR",
	VerdictSystemError:           "SYSTEM_ERROR",
	VerdictPending:               "PENDING",
	VerdictJudging:               "JUDGING",
	VerdictPartiallyAccepted:     "PARTIALLY_ACCEPTED",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether the verdict is a final judging outcome.
func (v Verdict) Terminal() bool {
	return v != VerdictPending && v != VerdictJudging
}
