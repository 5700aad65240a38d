package stats

import (
	"context"
	"testing"
	"time"

	"rivoj/internal/dispatch/model"
	"rivoj/internal/judgeapi"
)

type fakeStore struct {
	problems map[int64]*model.Problem
	profiles map[int64]*model.UserProfile
	acmRanks map[[2]int64]*model.ACMContestRank
	oiRanks  map[[2]int64]*model.OIContestRank
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		problems: make(map[int64]*model.Problem),
		profiles: make(map[int64]*model.UserProfile),
		acmRanks: make(map[[2]int64]*model.ACMContestRank),
		oiRanks:  make(map[[2]int64]*model.OIContestRank),
	}
}

func (s *fakeStore) InTransaction(ctx context.Context, fn func(Repo) error) error {
	return fn(s)
}

func (s *fakeStore) GetProblemForUpdate(ctx context.Context, id int64) (*model.Problem, error) {
	return s.problems[id], nil
}

func (s *fakeStore) SaveProblemStats(ctx context.Context, p *model.Problem) error {
	s.problems[p.ID] = p
	return nil
}

func (s *fakeStore) GetUserProfileForUpdate(ctx context.Context, userID int64) (*model.UserProfile, error) {
	if _, ok := s.profiles[userID]; !ok {
		s.profiles[userID] = &model.UserProfile{UserID: userID}
	}
	return s.profiles[userID], nil
}

func (s *fakeStore) SaveUserProfile(ctx context.Context, p *model.UserProfile) error {
	s.profiles[p.UserID] = p
	return nil
}

func (s *fakeStore) GetACMRankForUpdate(ctx context.Context, userID, contestID int64) (*model.ACMContestRank, error) {
	key := [2]int64{userID, contestID}
	if _, ok := s.acmRanks[key]; !ok {
		s.acmRanks[key] = &model.ACMContestRank{UserID: userID, ContestID: contestID}
	}
	return s.acmRanks[key], nil
}

func (s *fakeStore) SaveACMRank(ctx context.Context, r *model.ACMContestRank) error {
	s.acmRanks[[2]int64{r.UserID, r.ContestID}] = r
	return nil
}

func (s *fakeStore) GetOIRankForUpdate(ctx context.Context, userID, contestID int64) (*model.OIContestRank, error) {
	key := [2]int64{userID, contestID}
	if _, ok := s.oiRanks[key]; !ok {
		s.oiRanks[key] = &model.OIContestRank{UserID: userID, ContestID: contestID}
	}
	return s.oiRanks[key], nil
}

func (s *fakeStore) SaveOIRank(ctx context.Context, r *model.OIContestRank) error {
	s.oiRanks[[2]int64{r.UserID, r.ContestID}] = r
	return nil
}

type fakeRankCache struct {
	invalidated []int64
}

func (f *fakeRankCache) Invalidate(ctx context.Context, contestID int64) error {
	f.invalidated = append(f.invalidated, contestID)
	return nil
}

func submission(result judgeapi.Verdict, score int64) *model.Submission {
	return &model.Submission{
		ID:        "sub-1",
		ProblemID: 7,
		UserID:    42,
		Result:    result,
		Statistic: model.StatisticInfo{Score: score},
	}
}

func TestFirstAttemptThenImprovedReattempt(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.problems[7] = &model.Problem{ID: 7, DisplayID: "A", RuleType: model.RuleOI}
	u := NewUpdater(store, &fakeRankCache{})
	ctx := context.Background()

	if err := u.Update(ctx, submission(judgeapi.VerdictWrongAnswer, 40), nil); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	p := store.problems[7]
	if p.SubmissionNumber != 1 || p.AcceptedNumber != 0 {
		t.Fatalf("after WA: submissions=%d accepted=%d", p.SubmissionNumber, p.AcceptedNumber)
	}
	if got := p.StatisticInfo["-1"]; got != 1 {
		t.Fatalf("WA histogram bucket = %d, want 1", got)
	}
	profile := store.profiles[42]
	if profile.TotalScore != 40 {
		t.Fatalf("total score after first attempt = %d, want 40", profile.TotalScore)
	}

	if err := u.Update(ctx, submission(judgeapi.VerdictAccepted, 100), nil); err != nil {
		t.Fatalf("re-attempt: %v", err)
	}
	if _, ok := p.StatisticInfo["-1"]; ok {
		t.Fatalf("old WA bucket not undone: %v", p.StatisticInfo)
	}
	if got := p.StatisticInfo["0"]; got != 1 {
		t.Fatalf("AC histogram bucket = %d, want 1", got)
	}
	if p.AcceptedNumber != 1 || profile.AcceptedNumber != 1 {
		t.Fatalf("accepted counters = %d/%d, want 1/1", p.AcceptedNumber, profile.AcceptedNumber)
	}
	if profile.TotalScore != 100 {
		t.Fatalf("total score uses delta: got %d, want 100", profile.TotalScore)
	}
}

func TestRejudgeIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.problems[7] = &model.Problem{ID: 7, DisplayID: "A", RuleType: model.RuleOI}
	u := NewUpdater(store, &fakeRankCache{})
	ctx := context.Background()

	sub := submission(judgeapi.VerdictPartiallyAccepted, 60)
	if err := u.Update(ctx, sub, nil); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	scoreAfterOnce := store.profiles[42].TotalScore
	acceptedAfterOnce := store.profiles[42].AcceptedNumber

	if err := u.Update(ctx, sub, nil); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if got := store.profiles[42].TotalScore; got != scoreAfterOnce {
		t.Fatalf("total score after re-judge = %d, want %d", got, scoreAfterOnce)
	}
	if got := store.profiles[42].AcceptedNumber; got != acceptedAfterOnce {
		t.Fatalf("accepted count after re-judge = %d, want %d", got, acceptedAfterOnce)
	}
	if got := store.problems[7].StatisticInfo["8"]; got != 1 {
		t.Fatalf("histogram bucket after re-judge = %d, want 1", got)
	}
}

func TestAcceptedProblemNeverDowngraded(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.problems[7] = &model.Problem{ID: 7, DisplayID: "A", RuleType: model.RuleACM}
	u := NewUpdater(store, &fakeRankCache{})
	ctx := context.Background()

	if err := u.Update(ctx, submission(judgeapi.VerdictAccepted, 0), nil); err != nil {
		t.Fatalf("accepted attempt: %v", err)
	}
	if err := u.Update(ctx, submission(judgeapi.VerdictWrongAnswer, 0), nil); err != nil {
		t.Fatalf("later WA attempt: %v", err)
	}

	profile := store.profiles[42]
	if profile.AcceptedNumber != 1 {
		t.Fatalf("accepted count = %d, want 1", profile.AcceptedNumber)
	}
	if got := profile.ACMProblemsStatus["7"].Status; got != int(judgeapi.VerdictAccepted) {
		t.Fatalf("stored status = %d, want ACCEPTED", got)
	}
	if got := store.problems[7].StatisticInfo["0"]; got != 1 {
		t.Fatalf("AC bucket = %d, want 1", got)
	}
}

func TestACMRankPenaltyAndFirstAC(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.problems[7] = &model.Problem{ID: 7, DisplayID: "A", RuleType: model.RuleACM, ContestID: 3}
	u := NewUpdater(store, &fakeRankCache{})
	ctx := context.Background()

	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	contest := &model.Contest{ID: 3, RuleType: model.RuleACM, StartTime: start, EndTime: start.Add(5 * time.Hour)}

	wa := submission(judgeapi.VerdictWrongAnswer, 0)
	wa.ContestID = 3
	wa.CreateTime = start.Add(10 * time.Minute)
	if err := u.Update(ctx, wa, contest); err != nil {
		t.Fatalf("WA: %v", err)
	}

	ac := submission(judgeapi.VerdictAccepted, 0)
	ac.ContestID = 3
	ac.CreateTime = start.Add(30 * time.Minute)
	if err := u.Update(ctx, ac, contest); err != nil {
		t.Fatalf("AC: %v", err)
	}

	rank := store.acmRanks[[2]int64{42, 3}]
	info := rank.SubmissionInfo["7"]
	if !info.IsAC || info.ErrorNumber != 1 {
		t.Fatalf("problem info = %+v", info)
	}
	// 30 minutes to acceptance plus one 20-minute wrong-attempt penalty.
	wantPenalty := int64((30*time.Minute + 20*time.Minute) / time.Second)
	if rank.TotalTime != wantPenalty {
		t.Fatalf("total penalty = %d, want %d", rank.TotalTime, wantPenalty)
	}
	if !info.IsFirstAC {
		t.Fatalf("first accepted submission should set IsFirstAC")
	}

	// Further submissions after acceptance are ignored for penalty.
	late := submission(judgeapi.VerdictWrongAnswer, 0)
	late.ContestID = 3
	late.CreateTime = start.Add(40 * time.Minute)
	if err := u.Update(ctx, late, contest); err != nil {
		t.Fatalf("post-AC WA: %v", err)
	}
	rank = store.acmRanks[[2]int64{42, 3}]
	if rank.TotalTime != wantPenalty || rank.AcceptedNumber != 1 {
		t.Fatalf("post-AC submission changed rank: %+v", rank)
	}
}

func TestOIRankScoreDeltaAndCacheInvalidation(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.problems[7] = &model.Problem{ID: 7, DisplayID: "A", RuleType: model.RuleOI, ContestID: 3}
	rankCache := &fakeRankCache{}
	u := NewUpdater(store, rankCache)
	ctx := context.Background()

	contest := &model.Contest{ID: 3, RuleType: model.RuleOI}

	first := submission(judgeapi.VerdictPartiallyAccepted, 60)
	first.ContestID = 3
	if err := u.Update(ctx, first, contest); err != nil {
		t.Fatalf("first: %v", err)
	}
	second := submission(judgeapi.VerdictAccepted, 100)
	second.ContestID = 3
	if err := u.Update(ctx, second, contest); err != nil {
		t.Fatalf("second: %v", err)
	}

	rank := store.oiRanks[[2]int64{42, 3}]
	if rank.TotalScore != 100 {
		t.Fatalf("total score = %d, want 100 (delta, not sum)", rank.TotalScore)
	}
	if rank.SubmissionNumber != 2 {
		t.Fatalf("submission number = %d, want 2", rank.SubmissionNumber)
	}
	if len(rankCache.invalidated) != 2 {
		t.Fatalf("rank cache invalidations = %d, want 2", len(rankCache.invalidated))
	}
}
