package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"rivoj/internal/common/db"
	"rivoj/internal/dispatch/model"
	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
)

// SubmissionRepository reads and writes submission rows. Per-test-case
// results and the aggregate statistic travel as JSON columns.
type SubmissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) *SubmissionRepository {
	return &SubmissionRepository{db: database}
}

func (r *SubmissionRepository) Get(ctx context.Context, id string) (*model.Submission, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, problem_id, user_id, username, IFNULL(contest_id, 0), language, code,
			result, info, statistic_info, create_time
		 FROM submissions WHERE id = ?`, id)

	var (
		sub           model.Submission
		infoJSON      sql.NullString
		statisticJSON sql.NullString
	)
	err := row.Scan(&sub.ID, &sub.ProblemID, &sub.UserID, &sub.Username, &sub.ContestID,
		&sub.Language, &sub.Code, &sub.Result, &infoJSON, &statisticJSON, &sub.CreateTime)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.SubmissionNotFound).WithDetail("submission_id", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "fetch submission failed")
	}
	if infoJSON.Valid && infoJSON.String != "" {
		if err := json.Unmarshal([]byte(infoJSON.String), &sub.Info); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode submission info failed")
		}
	}
	if statisticJSON.Valid && statisticJSON.String != "" {
		if err := json.Unmarshal([]byte(statisticJSON.String), &sub.Statistic); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode submission statistic failed")
		}
	}
	return &sub, nil
}

// MarkJudging flips the submission into the transient judging state so
// polling clients see progress before the worker RPC starts.
func (r *SubmissionRepository) MarkJudging(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE submissions SET result = ? WHERE id = ?", judgeapi.VerdictJudging, id)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "mark submission judging failed")
	}
	return nil
}

// SaveResult persists the terminal verdict, the ordered per-test-case
// records and the aggregate statistic.
func (r *SubmissionRepository) SaveResult(ctx context.Context, sub *model.Submission) error {
	infoJSON, err := json.Marshal(sub.Info)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode submission info failed")
	}
	statisticJSON, err := json.Marshal(sub.Statistic)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode submission statistic failed")
	}
	_, err = r.db.Exec(ctx,
		"UPDATE submissions SET result = ?, info = ?, statistic_info = ? WHERE id = ?",
		sub.Result, string(infoJSON), string(statisticJSON), sub.ID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "save submission result failed")
	}
	return nil
}
