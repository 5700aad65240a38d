package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"rivoj/internal/common/db"
	"rivoj/internal/dispatch/model"
	appErr "rivoj/pkg/errors"
)

const problemColumns = `id, IFNULL(display_id, ''), IFNULL(contest_id, 0), rule_type, test_case_id,
	test_case_score, time_limit, memory_limit, spj, IFNULL(spj_language, ''),
	IFNULL(spj_code, ''), IFNULL(spj_version, ''), spj_compile_ok, template,
	submission_number, accepted_number, statistic_info, total_score`

// ProblemRepository reads problem rows for dispatching and SPJ compilation.
type ProblemRepository struct {
	db db.Database
}

func NewProblemRepository(database db.Database) *ProblemRepository {
	return &ProblemRepository{db: database}
}

func (r *ProblemRepository) Get(ctx context.Context, id int64) (*model.Problem, error) {
	row := r.db.QueryRow(ctx, "SELECT "+problemColumns+" FROM problems WHERE id = ?", id)
	p, err := scanProblem(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.ProblemNotFound).WithDetail("problem_id", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "fetch problem failed")
	}
	return p, nil
}

// SetSPJCompileOK records that the versioned SPJ binary compiled cleanly.
func (r *ProblemRepository) SetSPJCompileOK(ctx context.Context, id int64, ok bool) error {
	_, err := r.db.Exec(ctx, "UPDATE problems SET spj_compile_ok = ? WHERE id = ?", ok, id)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "update problem spj flag failed")
	}
	return nil
}

func scanProblem(row db.Row) (*model.Problem, error) {
	var (
		p             model.Problem
		scoreJSON     sql.NullString
		templateJSON  sql.NullString
		statisticJSON sql.NullString
	)
	err := row.Scan(&p.ID, &p.DisplayID, &p.ContestID, &p.RuleType, &p.TestCaseID,
		&scoreJSON, &p.TimeLimitMS, &p.MemoryLimitMB, &p.SPJ, &p.SPJLanguage,
		&p.SPJCode, &p.SPJVersion, &p.SPJCompileOK, &templateJSON,
		&p.SubmissionNumber, &p.AcceptedNumber, &statisticJSON, &p.TotalScore)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(scoreJSON, &p.TestCaseScore); err != nil {
		return nil, err
	}
	if err := decodeJSON(templateJSON, &p.Template); err != nil {
		return nil, err
	}
	if err := decodeJSON(statisticJSON, &p.StatisticInfo); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeJSON(col sql.NullString, dest interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}
