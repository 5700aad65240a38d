package repository

import (
	"context"

	"rivoj/internal/common/db"
	"rivoj/internal/dispatch/model"
	appErr "rivoj/pkg/errors"
)

// ContestRepository reads contest rows for rank bookkeeping.
type ContestRepository struct {
	db db.Database
}

func NewContestRepository(database db.Database) *ContestRepository {
	return &ContestRepository{db: database}
}

func (r *ContestRepository) Get(ctx context.Context, id int64) (*model.Contest, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, created_by_id, rule_type, real_time_rank, start_time, end_time
		 FROM contests WHERE id = ?`, id)
	var c model.Contest
	err := row.Scan(&c.ID, &c.CreatedByID, &c.RuleType, &c.RealTimeRank, &c.StartTime, &c.EndTime)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.ContestNotFound).WithDetail("contest_id", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "fetch contest failed")
	}
	return &c, nil
}
