package dispatcher

import (
	"context"
	"time"

	"rivoj/internal/dispatch/model"
	"rivoj/internal/dispatch/options"
	"rivoj/internal/dispatch/pool"
	"rivoj/internal/dispatch/queue"
	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// SubmissionStore is the submission persistence surface the dispatcher needs.
type SubmissionStore interface {
	Get(ctx context.Context, id string) (*model.Submission, error)
	MarkJudging(ctx context.Context, id string) error
	SaveResult(ctx context.Context, sub *model.Submission) error
}

// ProblemStore loads problem records.
type ProblemStore interface {
	Get(ctx context.Context, id int64) (*model.Problem, error)
}

// UserStore loads user records.
type UserStore interface {
	Get(ctx context.Context, id int64) (*model.User, error)
}

// ContestStore loads contest records.
type ContestStore interface {
	Get(ctx context.Context, id int64) (*model.Contest, error)
}

// JudgeClient sends one job to a worker execution service.
type JudgeClient interface {
	Judge(ctx context.Context, serviceURL string, req judgeapi.JudgeRequest) ([]judgeapi.TestCaseResult, error)
}

// StatsUpdater folds a judged submission into the downstream aggregates.
type StatsUpdater interface {
	Update(ctx context.Context, sub *model.Submission, contest *model.Contest) error
}

// Backlog is the pending queue holding jobs that found no capacity.
type Backlog interface {
	Push(ctx context.Context, entry queue.Entry) error
	Pop(ctx context.Context) (*queue.Entry, error)
}

// Redispatcher re-enqueues a drained backlog entry for a fresh dispatch
// attempt.
type Redispatcher interface {
	Redispatch(ctx context.Context, entry queue.Entry) error
}

// LanguageProvider resolves language configurations by name.
type LanguageProvider interface {
	Language(ctx context.Context, name string) (options.Language, error)
}

// Config holds the dispatcher's collaborators.
type Config struct {
	Submissions SubmissionStore
	Problems    ProblemStore
	Users       UserStore
	Contests    ContestStore
	Pool        pool.Selector
	Queue       Backlog
	Client      JudgeClient
	Stats       StatsUpdater
	Languages   LanguageProvider
	Redispatch  Redispatcher
}

// Dispatcher orchestrates one judging attempt per submission: worker
// selection, the judge RPC, result aggregation, persistence, statistics and
// backlog draining.
type Dispatcher struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, now: time.Now}
}

// Dispatch judges one submission. Absence of worker capacity is not an
// error; the job is parked on the pending queue instead.
func (d *Dispatcher) Dispatch(ctx context.Context, submissionID string, problemID int64) error {
	sub, err := d.cfg.Submissions.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	problem, err := d.cfg.Problems.Get(ctx, problemID)
	if err != nil {
		return err
	}
	user, err := d.cfg.Users.Get(ctx, sub.UserID)
	if err != nil {
		return err
	}
	if user.Disabled {
		logger.Warn(ctx, "skipping submission from disabled user",
			zap.String("submission_id", sub.ID), zap.Int64("user_id", user.ID))
		return nil
	}

	var contest *model.Contest
	if sub.InContest() {
		contest, err = d.cfg.Contests.Get(ctx, sub.ContestID)
		if err != nil {
			return err
		}
	}

	lang, err := d.cfg.Languages.Language(ctx, sub.Language)
	if err != nil {
		return err
	}
	var spjLang *options.Language
	if problem.SPJ {
		l, err := d.cfg.Languages.Language(ctx, problem.SPJLanguage)
		if err != nil {
			return err
		}
		spjLang = &l
	}

	worker, err := d.cfg.Pool.Select(ctx)
	if err != nil {
		return err
	}
	if worker == nil {
		// Backpressure, not failure: park the job until capacity frees up.
		return d.cfg.Queue.Push(ctx, queue.Entry{SubmissionID: submissionID, ProblemID: problemID})
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := d.cfg.Pool.Release(ctx, worker.ID); err != nil {
			logger.Error(ctx, "release worker slot failed",
				zap.Int64("worker_id", worker.ID), zap.Error(err))
		}
	}
	defer release()

	req := buildJudgeRequest(sub, problem, lang, spjLang)

	// Clients polling the submission must observe the judging state before
	// the RPC starts.
	if err := d.cfg.Submissions.MarkJudging(ctx, sub.ID); err != nil {
		return err
	}

	results, judgeErr := d.cfg.Client.Judge(ctx, worker.ServiceURL, req)
	switch {
	case judgeErr == nil:
		sub.Info, sub.Result, sub.Statistic = aggregate(results, problem)
	case appErr.GetCode(judgeErr) == appErr.CompileError:
		sub.Result = judgeapi.VerdictCompileError
		sub.Info = nil
		sub.Statistic = model.StatisticInfo{ErrInfo: judgeErr.Error()}
	default:
		logger.Error(ctx, "judge attempt failed",
			zap.String("submission_id", sub.ID),
			zap.Int64("worker_id", worker.ID),
			zap.Error(judgeErr))
		sub.Result = judgeapi.VerdictSystemError
		sub.Info = nil
		sub.Statistic = model.StatisticInfo{ErrInfo: appErr.JudgeSystemError.Message()}
	}

	if err := d.cfg.Submissions.SaveResult(ctx, sub); err != nil {
		return err
	}
	release()

	d.updateStatistics(ctx, sub, user, contest)
	d.drainOne(ctx)
	return nil
}

// updateStatistics applies the downstream aggregates unless this is a
// debug submission by a contest administrator inside a running contest.
func (d *Dispatcher) updateStatistics(ctx context.Context, sub *model.Submission, user *model.User, contest *model.Contest) {
	if contest != nil {
		if contest.Status(d.now()) != model.ContestUnderway || user.IsContestAdmin(contest) {
			logger.Info(ctx, "contest debug submission, skipping statistics",
				zap.String("submission_id", sub.ID), zap.Int64("contest_id", contest.ID))
			return
		}
	}
	if err := d.cfg.Stats.Update(ctx, sub, contest); err != nil {
		logger.Error(ctx, "statistics update failed",
			zap.String("submission_id", sub.ID), zap.Error(err))
	}
}

// drainOne gives one parked job a fresh dispatch attempt. Best effort; a
// failure leaves the remaining backlog for the next trigger.
func (d *Dispatcher) drainOne(ctx context.Context) {
	entry, err := d.cfg.Queue.Pop(ctx)
	if err != nil {
		logger.Warn(ctx, "pop pending queue failed", zap.Error(err))
		return
	}
	if entry == nil {
		return
	}
	if err := d.cfg.Redispatch.Redispatch(ctx, *entry); err != nil {
		logger.Error(ctx, "redispatch pending job failed",
			zap.String("submission_id", entry.SubmissionID), zap.Error(err))
		if pushErr := d.cfg.Queue.Push(ctx, *entry); pushErr != nil {
			logger.Error(ctx, "requeue pending job failed",
				zap.String("submission_id", entry.SubmissionID), zap.Error(pushErr))
		}
	}
}

// DrainOne exposes backlog draining to heartbeat and admin triggers.
func (d *Dispatcher) DrainOne(ctx context.Context) {
	d.drainOne(ctx)
}

func buildJudgeRequest(sub *model.Submission, problem *model.Problem, lang options.Language, spjLang *options.Language) judgeapi.JudgeRequest {
	req := judgeapi.JudgeRequest{
		LanguageConfig: lang.Config,
		Src:            applyTemplate(problem.Template, sub.Language, sub.Code),
		MaxCPUTime:     problem.TimeLimitMS,
		MaxMemory:      problem.MemoryLimitBytes(),
		TestCaseID:     problem.TestCaseID,
		Output:         sub.SharedVisible,
	}
	if problem.SPJ && spjLang != nil {
		req.SPJVersion = problem.SPJVersion
		req.SPJConfig = spjLang.SPJ
		req.SPJCompileConfig = spjLang.SPJCompile
		req.SPJSrc = problem.SPJCode
	}
	return req
}
