package model

// Rule types for verdict aggregation and ranking.
const (
	RuleACM = "ACM"
	RuleOI  = "OI"
)

// TestCaseScore is the authored score for one test case of an OI problem.
type TestCaseScore struct {
	Score      int64  `json:"score"`
	InputName  string `json:"input_name"`
	OutputName string `json:"output_name,omitempty"`
}

// Problem carries the judge-facing fields of a problem record.
type Problem struct {
	ID            int64
	DisplayID     string
	ContestID     int64
	RuleType      string
	TestCaseID    string
	TestCaseScore []TestCaseScore
	TimeLimitMS   int64
	MemoryLimitMB int64
	SPJ           bool
	SPJLanguage   string
	SPJCode       string
	SPJVersion    string
	SPJCompileOK  bool
	// Template maps language name to a prepend/template/append source skeleton.
	Template map[string]string

	SubmissionNumber int64
	AcceptedNumber   int64
	// StatisticInfo is the verdict histogram, keyed by the numeric verdict.
	StatisticInfo map[string]int64
	TotalScore    int64
}

// MemoryLimitBytes converts the authored MB limit to the sandbox byte limit.
func (p *Problem) MemoryLimitBytes() int64 {
	return p.MemoryLimitMB * 1024 * 1024
}
