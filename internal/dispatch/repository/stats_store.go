package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"rivoj/internal/common/db"
	"rivoj/internal/dispatch/model"
	"rivoj/internal/dispatch/stats"
	appErr "rivoj/pkg/errors"
)

// StatsStore runs statistics updates inside one database transaction per
// submission, with per-row locks taken on every aggregate it touches.
type StatsStore struct {
	db db.Database
}

func NewStatsStore(database db.Database) *StatsStore {
	return &StatsStore{db: database}
}

// InTransaction implements stats.Store.
func (s *StatsStore) InTransaction(ctx context.Context, fn func(stats.Repo) error) error {
	return s.db.Transaction(ctx, func(tx db.Transaction) error {
		return fn(&txRepo{tx: tx})
	})
}

type txRepo struct {
	tx db.Transaction
}

func (r *txRepo) GetProblemForUpdate(ctx context.Context, problemID int64) (*model.Problem, error) {
	row := r.tx.QueryRow(ctx,
		"SELECT "+problemColumns+" FROM problems WHERE id = ? FOR UPDATE", problemID)
	p, err := scanProblem(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.ProblemNotFound).WithDetail("problem_id", problemID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "lock problem failed")
	}
	return p, nil
}

func (r *txRepo) SaveProblemStats(ctx context.Context, p *model.Problem) error {
	statisticJSON, err := json.Marshal(p.StatisticInfo)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode problem statistics failed")
	}
	_, err = r.tx.Exec(ctx,
		`UPDATE problems SET submission_number = ?, accepted_number = ?, statistic_info = ?
		 WHERE id = ?`,
		p.SubmissionNumber, p.AcceptedNumber, string(statisticJSON), p.ID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "save problem statistics failed")
	}
	return nil
}

func (r *txRepo) GetUserProfileForUpdate(ctx context.Context, userID int64) (*model.UserProfile, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT user_id, submission_number, accepted_number, total_score,
			acm_problems_status, oi_problems_status
		 FROM user_profiles WHERE user_id = ? FOR UPDATE`, userID)
	var (
		profile model.UserProfile
		acmJSON sql.NullString
		oiJSON  sql.NullString
	)
	err := row.Scan(&profile.UserID, &profile.SubmissionNumber, &profile.AcceptedNumber,
		&profile.TotalScore, &acmJSON, &oiJSON)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.UserNotFound).WithDetail("user_id", userID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "lock user profile failed")
	}
	if err := decodeJSON(acmJSON, &profile.ACMProblemsStatus); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode acm problem status failed")
	}
	if err := decodeJSON(oiJSON, &profile.OIProblemsStatus); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode oi problem status failed")
	}
	return &profile, nil
}

func (r *txRepo) SaveUserProfile(ctx context.Context, profile *model.UserProfile) error {
	acmJSON, err := json.Marshal(profile.ACMProblemsStatus)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode acm problem status failed")
	}
	oiJSON, err := json.Marshal(profile.OIProblemsStatus)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode oi problem status failed")
	}
	_, err = r.tx.Exec(ctx,
		`UPDATE user_profiles SET submission_number = ?, accepted_number = ?, total_score = ?,
			acm_problems_status = ?, oi_problems_status = ?
		 WHERE user_id = ?`,
		profile.SubmissionNumber, profile.AcceptedNumber, profile.TotalScore,
		string(acmJSON), string(oiJSON), profile.UserID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "save user profile failed")
	}
	return nil
}

func (r *txRepo) GetACMRankForUpdate(ctx context.Context, userID, contestID int64) (*model.ACMContestRank, error) {
	// Ensure the row exists so the locking read below always has a target.
	_, err := r.tx.Exec(ctx,
		`INSERT IGNORE INTO acm_contest_rank (user_id, contest_id, submission_info)
		 VALUES (?, ?, '{}')`, userID, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "create acm rank row failed")
	}
	row := r.tx.QueryRow(ctx,
		`SELECT user_id, contest_id, submission_number, accepted_number, total_time, submission_info
		 FROM acm_contest_rank WHERE user_id = ? AND contest_id = ? FOR UPDATE`,
		userID, contestID)
	var (
		rank     model.ACMContestRank
		infoJSON sql.NullString
	)
	err = row.Scan(&rank.UserID, &rank.ContestID, &rank.SubmissionNumber,
		&rank.AcceptedNumber, &rank.TotalTime, &infoJSON)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "lock acm rank failed")
	}
	if err := decodeJSON(infoJSON, &rank.SubmissionInfo); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode acm rank info failed")
	}
	return &rank, nil
}

func (r *txRepo) SaveACMRank(ctx context.Context, rank *model.ACMContestRank) error {
	infoJSON, err := json.Marshal(rank.SubmissionInfo)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode acm rank info failed")
	}
	_, err = r.tx.Exec(ctx,
		`UPDATE acm_contest_rank SET submission_number = ?, accepted_number = ?,
			total_time = ?, submission_info = ?
		 WHERE user_id = ? AND contest_id = ?`,
		rank.SubmissionNumber, rank.AcceptedNumber, rank.TotalTime,
		string(infoJSON), rank.UserID, rank.ContestID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "save acm rank failed")
	}
	return nil
}

func (r *txRepo) GetOIRankForUpdate(ctx context.Context, userID, contestID int64) (*model.OIContestRank, error) {
	_, err := r.tx.Exec(ctx,
		`INSERT IGNORE INTO oi_contest_rank (user_id, contest_id, submission_info)
		 VALUES (?, ?, '{}')`, userID, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "create oi rank row failed")
	}
	row := r.tx.QueryRow(ctx,
		`SELECT user_id, contest_id, submission_number, total_score, submission_info
		 FROM oi_contest_rank WHERE user_id = ? AND contest_id = ? FOR UPDATE`,
		userID, contestID)
	var (
		rank     model.OIContestRank
		infoJSON sql.NullString
	)
	err = row.Scan(&rank.UserID, &rank.ContestID, &rank.SubmissionNumber,
		&rank.TotalScore, &infoJSON)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "lock oi rank failed")
	}
	if err := decodeJSON(infoJSON, &rank.SubmissionInfo); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode oi rank info failed")
	}
	return &rank, nil
}

func (r *txRepo) SaveOIRank(ctx context.Context, rank *model.OIContestRank) error {
	infoJSON, err := json.Marshal(rank.SubmissionInfo)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode oi rank info failed")
	}
	_, err = r.tx.Exec(ctx,
		`UPDATE oi_contest_rank SET submission_number = ?, total_score = ?, submission_info = ?
		 WHERE user_id = ? AND contest_id = ?`,
		rank.SubmissionNumber, rank.TotalScore, string(infoJSON),
		rank.UserID, rank.ContestID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "save oi rank failed")
	}
	return nil
}
