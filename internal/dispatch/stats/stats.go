package stats

import (
	"context"
	"strconv"
	"time"

	"rivoj/internal/dispatch/model"
	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// wrongAttemptPenalty is added to ACM penalty time per failed attempt
// before the first acceptance.
const wrongAttemptPenalty = 20 * time.Minute

// Repo is the transactional data surface the updater writes through. Every
// getter locks the row for the remainder of the transaction.
type Repo interface {
	GetProblemForUpdate(ctx context.Context, problemID int64) (*model.Problem, error)
	SaveProblemStats(ctx context.Context, p *model.Problem) error
	GetUserProfileForUpdate(ctx context.Context, userID int64) (*model.UserProfile, error)
	SaveUserProfile(ctx context.Context, profile *model.UserProfile) error
	GetACMRankForUpdate(ctx context.Context, userID, contestID int64) (*model.ACMContestRank, error)
	SaveACMRank(ctx context.Context, rank *model.ACMContestRank) error
	GetOIRankForUpdate(ctx context.Context, userID, contestID int64) (*model.OIContestRank, error)
	SaveOIRank(ctx context.Context, rank *model.OIContestRank) error
}

// Store opens one transaction per judged submission so that every counter
// delta is applied exactly once.
type Store interface {
	InTransaction(ctx context.Context, fn func(repo Repo) error) error
}

// RankCache invalidates cached contest leaderboards.
type RankCache interface {
	Invalidate(ctx context.Context, contestID int64) error
}

// Updater folds one judged submission into problem, user and contest-rank
// aggregates.
type Updater struct {
	store     Store
	rankCache RankCache
}

func NewUpdater(store Store, rankCache RankCache) *Updater {
	return &Updater{store: store, rankCache: rankCache}
}

// Update applies all statistics deltas for one judged submission. contest is
// nil for non-contest submissions. All writes share a single transaction.
func (u *Updater) Update(ctx context.Context, sub *model.Submission, contest *model.Contest) error {
	err := u.store.InTransaction(ctx, func(repo Repo) error {
		if contest != nil {
			return u.updateContest(ctx, repo, sub, contest)
		}
		return u.updateProblemAndUser(ctx, repo, sub)
	})
	if err != nil {
		return appErr.Wrap(err, appErr.RankUpdateFailed)
	}

	if contest != nil && (contest.RuleType == model.RuleOI || contest.RealTimeRank) {
		if err := u.rankCache.Invalidate(ctx, contest.ID); err != nil {
			logger.Warn(ctx, "invalidate contest rank cache failed",
				zap.Int64("contest_id", contest.ID), zap.Error(err))
		}
	}
	return nil
}

// updateProblemAndUser handles non-contest submissions. A re-attempt first
// undoes the previously recorded verdict so repeated re-judging converges to
// the same counters.
func (u *Updater) updateProblemAndUser(ctx context.Context, repo Repo, sub *model.Submission) error {
	problem, err := repo.GetProblemForUpdate(ctx, sub.ProblemID)
	if err != nil {
		return err
	}
	profile, err := repo.GetUserProfileForUpdate(ctx, sub.UserID)
	if err != nil {
		return err
	}

	pid := strconv.FormatInt(sub.ProblemID, 10)
	statusMap := problemStatusMap(profile, problem.RuleType)
	prev, hadPrev := statusMap[pid]
	accepted := sub.Result == judgeapi.VerdictAccepted

	problem.SubmissionNumber++
	profile.SubmissionNumber++

	if hadPrev && prev.Status == int(judgeapi.VerdictAccepted) {
		// An accepted problem is never downgraded by later submissions.
		if err := repo.SaveProblemStats(ctx, problem); err != nil {
			return err
		}
		return repo.SaveUserProfile(ctx, profile)
	}

	if hadPrev {
		bumpHistogram(problem, judgeapi.Verdict(prev.Status), -1)
	}
	bumpHistogram(problem, sub.Result, 1)

	entry := model.ProblemStatus{Status: int(sub.Result), DisplayID: problem.DisplayID}
	if problem.RuleType == model.RuleOI {
		entry.Score = sub.Statistic.Score
		if hadPrev {
			profile.TotalScore += sub.Statistic.Score - prev.Score
		} else {
			profile.TotalScore += sub.Statistic.Score
		}
	}
	statusMap[pid] = entry

	if accepted {
		problem.AcceptedNumber++
		profile.AcceptedNumber++
	}

	if err := repo.SaveProblemStats(ctx, problem); err != nil {
		return err
	}
	return repo.SaveUserProfile(ctx, profile)
}

// updateContest maintains the per-user rank row and the contest problem's
// counters.
func (u *Updater) updateContest(ctx context.Context, repo Repo, sub *model.Submission, contest *model.Contest) error {
	problem, err := repo.GetProblemForUpdate(ctx, sub.ProblemID)
	if err != nil {
		return err
	}

	switch contest.RuleType {
	case model.RuleACM:
		return u.updateACMRank(ctx, repo, sub, contest, problem)
	case model.RuleOI:
		return u.updateOIRank(ctx, repo, sub, contest, problem)
	default:
		return appErr.Newf(appErr.InvalidParams, "unknown contest rule type %q", contest.RuleType)
	}
}

func (u *Updater) updateACMRank(ctx context.Context, repo Repo, sub *model.Submission, contest *model.Contest, problem *model.Problem) error {
	rank, err := repo.GetACMRankForUpdate(ctx, sub.UserID, contest.ID)
	if err != nil {
		return err
	}
	pid := strconv.FormatInt(sub.ProblemID, 10)
	if rank.SubmissionInfo == nil {
		rank.SubmissionInfo = make(map[string]model.ACMProblemInfo)
	}
	info := rank.SubmissionInfo[pid]

	rank.SubmissionNumber++
	problem.SubmissionNumber++
	bumpHistogram(problem, sub.Result, 1)

	if info.IsAC {
		// Once accepted, later submissions to the problem do not affect
		// penalty or accepted counts.
		if err := repo.SaveProblemStats(ctx, problem); err != nil {
			return err
		}
		return repo.SaveACMRank(ctx, rank)
	}

	switch {
	case sub.Result == judgeapi.VerdictAccepted:
		problem.AcceptedNumber++
		info.IsAC = true
		info.ACTime = int64(sub.CreateTime.Sub(contest.StartTime).Seconds())
		info.IsFirstAC = problem.AcceptedNumber == 1
		rank.AcceptedNumber++
		rank.TotalTime += info.ACTime + info.ErrorNumber*int64(wrongAttemptPenalty.Seconds())
	case sub.Result != judgeapi.VerdictCompileError:
		info.ErrorNumber++
	}
	rank.SubmissionInfo[pid] = info

	if err := repo.SaveProblemStats(ctx, problem); err != nil {
		return err
	}
	return repo.SaveACMRank(ctx, rank)
}

func (u *Updater) updateOIRank(ctx context.Context, repo Repo, sub *model.Submission, contest *model.Contest, problem *model.Problem) error {
	rank, err := repo.GetOIRankForUpdate(ctx, sub.UserID, contest.ID)
	if err != nil {
		return err
	}
	pid := strconv.FormatInt(sub.ProblemID, 10)
	if rank.SubmissionInfo == nil {
		rank.SubmissionInfo = make(map[string]int64)
	}

	rank.SubmissionNumber++
	problem.SubmissionNumber++
	bumpHistogram(problem, sub.Result, 1)
	if sub.Result == judgeapi.VerdictAccepted {
		problem.AcceptedNumber++
	}

	// Only the latest score counts; the delta keeps re-judging idempotent.
	last := rank.SubmissionInfo[pid]
	rank.TotalScore += sub.Statistic.Score - last
	rank.SubmissionInfo[pid] = sub.Statistic.Score

	if err := repo.SaveProblemStats(ctx, problem); err != nil {
		return err
	}
	return repo.SaveOIRank(ctx, rank)
}

func problemStatusMap(profile *model.UserProfile, ruleType string) map[string]model.ProblemStatus {
	if ruleType == model.RuleOI {
		if profile.OIProblemsStatus == nil {
			profile.OIProblemsStatus = make(map[string]model.ProblemStatus)
		}
		return profile.OIProblemsStatus
	}
	if profile.ACMProblemsStatus == nil {
		profile.ACMProblemsStatus = make(map[string]model.ProblemStatus)
	}
	return profile.ACMProblemsStatus
}

func bumpHistogram(problem *model.Problem, verdict judgeapi.Verdict, delta int64) {
	if problem.StatisticInfo == nil {
		problem.StatisticInfo = make(map[string]int64)
	}
	key := strconv.Itoa(int(verdict))
	next := problem.StatisticInfo[key] + delta
	if next <= 0 {
		delete(problem.StatisticInfo, key)
		return
	}
	problem.StatisticInfo[key] = next
}
