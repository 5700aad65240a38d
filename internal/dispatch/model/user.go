package model

// Admin types carried on the user record.
const (
	AdminTypeRegular    = "Regular User"
	AdminTypeAdmin      = "Admin"
	AdminTypeSuperAdmin = "Super Admin"
)

// User carries the judge-facing fields of a user record.
type User struct {
	ID        int64
	Username  string
	AdminType string
	Disabled  bool
}

// IsContestAdmin reports whether the user may debug-submit inside a running
// contest without affecting statistics.
func (u *User) IsContestAdmin(c *Contest) bool {
	if u.AdminType == AdminTypeSuperAdmin {
		return true
	}
	return u.AdminType == AdminTypeAdmin && c != nil && c.CreatedByID == u.ID
}

// ProblemStatus is one entry of a user's per-problem status map.
type ProblemStatus struct {
	Status    int    `json:"status"`
	DisplayID string `json:"_id"`
	Score     int64  `json:"score,omitempty"`
}

// UserProfile is the per-user aggregate updated after each judged submission.
type UserProfile struct {
	UserID           int64
	SubmissionNumber int64
	AcceptedNumber   int64
	TotalScore       int64
	// ACMProblemsStatus / OIProblemsStatus map problem id (decimal string)
	// to the latest recorded status for that problem.
	ACMProblemsStatus map[string]ProblemStatus
	OIProblemsStatus  map[string]ProblemStatus
}
