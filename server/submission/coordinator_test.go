// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctfcore/server/config"
	"ctfcore/server/events"
	"ctfcore/server/flags"
	"ctfcore/server/scoring"
	"ctfcore/server/submission"
)

func testSettings() config.Settings {
	s := config.Defaults()
	s.WrongFlagCooldownSeconds = 0
	return s
}

func newCoordinator(store *submission.MemStore, settings config.Settings) *submission.Coordinator {
	return &submission.Coordinator{
		Store:      store,
		Matchers:   flags.Lookup,
		Strategies: scoring.Lookup,
		Settings: func(ctx context.Context) (config.Settings, error) {
			return settings, nil
		},
	}
}

func teamID(id int64) *int64 { return &id }

// seedBasic 一支队伍、一个成员、一道固定100分的明文flag题
func seedBasic(store *submission.MemStore) {
	store.PutTeam(&submission.Team{ID: 1, Name: "alpha"})
	store.PutUser(&submission.User{ID: 10, Username: "alice", TeamID: teamID(1)})
	store.PutChallenge(&submission.Challenge{
		ID:           100,
		Title:        "warmup",
		FlagType:     "plaintext",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"flag":"ractf{ok}"}`),
		PointsConfig: json.RawMessage(`{"points":100}`),
		AutoUnlock:   true,
	})
}

func TestSubmitCorrectFlag(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	co := newCoordinator(store, testSettings())

	res, err := co.Submit(context.Background(), submission.SubmitInput{
		UserID: 10, ChallengeID: 100, Flag: "ractf{ok}", IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
	assert.True(t, res.Correct)
	assert.Equal(t, 100, res.Points)
	assert.True(t, res.FirstBlood)

	// 台账、队伍分、个人分、一血全部落库
	solves := store.Solves()
	require.Len(t, solves, 1)
	assert.True(t, solves[0].Correct)
	assert.Equal(t, 100, solves[0].Points)
	assert.Equal(t, "ractf{ok}", solves[0].Flag)
	assert.Equal(t, "10.0.0.1", solves[0].IPAddress)

	team, err := store.GetTeam(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, team.Points)

	user, err := store.GetUser(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 100, user.Points)

	ch, err := store.GetChallenge(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, ch.FirstBloodID)
	assert.Equal(t, int64(10), *ch.FirstBloodID)
}

func TestSubmitIncorrectThenCorrect(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{nope}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)
	assert.False(t, res.Correct)

	// 错误提交也进台账，但不得分
	solves := store.Solves()
	require.Len(t, solves, 1)
	assert.False(t, solves[0].Correct)
	assert.Equal(t, 0, solves[0].Points)

	team, _ := store.GetTeam(ctx, 1)
	assert.Equal(t, 0, team.Points)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)

	team, _ = store.GetTeam(ctx, 1)
	assert.Equal(t, 100, team.Points)
	assert.Len(t, store.Solves(), 2)
}

func TestSubmitAlreadySolved(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	_, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)

	// 同队再交正确flag不再计分，也不进台账
	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeAlreadySolved, res.Outcome)

	team, _ := store.GetTeam(ctx, 1)
	assert.Equal(t, 100, team.Points)
	assert.Len(t, store.Solves(), 1)
}

func TestSubmitLockedChallenge(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	// 题目101需要先解出100
	store.PutChallenge(&submission.Challenge{
		ID:           101,
		FlagType:     "plaintext",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"flag":"ractf{next}"}`),
		PointsConfig: json.RawMessage(`{"points":200}`),
		UnlockedBy:   []int64{100},
	})
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	// 未解锁的题即使flag正确也拒绝，且不区分于已解出的响应
	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 101, Flag: "ractf{next}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeAlreadySolved, res.Outcome)
	assert.Empty(t, store.Solves())

	// 解出前置题之后解锁
	_, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 101, Flag: "ractf{next}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
	assert.Equal(t, 200, res.Points)
}

func TestSubmitAttemptLimitBoundary(t *testing.T) {
	store := submission.NewMemStore()
	store.PutTeam(&submission.Team{ID: 1, Name: "alpha"})
	store.PutUser(&submission.User{ID: 10, Username: "alice", TeamID: teamID(1)})
	store.PutChallenge(&submission.Challenge{
		ID:           100,
		FlagType:     "plaintext",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"flag":"ractf{ok}"}`),
		PointsConfig: json.RawMessage(`{"points":100,"attempt_limit":2}`),
		AutoUnlock:   true,
	})
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	// 拦截条件是已有提交数大于限制：limit=2时第1、2、3次都放行，第4次起拒绝
	for i := 0; i < 3; i++ {
		res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{wrong}"})
		require.NoError(t, err)
		assert.Equal(t, submission.OutcomeIncorrect, res.Outcome, "attempt %d", i+1)
	}

	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeAttemptLimit, res.Outcome)

	// 超限的提交不进台账
	assert.Len(t, store.Solves(), 3)
}

func TestSubmitGates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		mutate  func(*config.Settings)
		outcome string
	}{
		{"Submission Disabled", func(s *config.Settings) {
			s.EnableFlagSubmission = false
		}, submission.OutcomeDisabled},
		{"Not Started", func(s *config.Settings) {
			s.StartTime = now.Add(time.Hour)
		}, submission.OutcomeDisabled},
		{"Ended", func(s *config.Settings) {
			s.EndTime = now.Add(-time.Hour)
		}, submission.OutcomeDisabled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := submission.NewMemStore()
			seedBasic(store)
			settings := testSettings()
			tc.mutate(&settings)
			co := newCoordinator(store, settings)
			co.Now = func() time.Time { return now }

			res, err := co.Submit(context.Background(), submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Empty(t, store.Solves())
		})
	}

	t.Run("Ended But Late Submission Allowed", func(t *testing.T) {
		store := submission.NewMemStore()
		seedBasic(store)
		settings := testSettings()
		settings.EndTime = now.Add(-time.Hour)
		settings.EnableFlagSubmissionAfterEnd = true
		co := newCoordinator(store, settings)
		co.Now = func() time.Time { return now }

		res, err := co.Submit(context.Background(), submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
		require.NoError(t, err)
		assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
	})
}

func TestSubmitRejectsBotAndTeamless(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	store.PutUser(&submission.User{ID: 11, Username: "checker", TeamID: teamID(1), IsBot: true})
	store.PutUser(&submission.User{ID: 12, Username: "loner"})
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 11, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeBotDenied, res.Outcome)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 12, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeNoTeam, res.Outcome)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "   "})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeBadRequest, res.Outcome)

	assert.Empty(t, store.Solves())
}

func TestConcurrentSubmitSingleSolve(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	// 同队多个成员
	for id := int64(11); id <= 18; id++ {
		store.PutUser(&submission.User{ID: id, TeamID: teamID(1)})
	}
	co := newCoordinator(store, testSettings())

	var wg sync.WaitGroup
	results := make([]string, 9)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := int64(10 + i)
			res, err := co.Submit(context.Background(), submission.SubmitInput{
				UserID: userID, ChallengeID: 100, Flag: "ractf{ok}",
			})
			if err == nil {
				results[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	// 并发提交只有一个成功计分，其余都按已解出拒绝
	correct, already := 0, 0
	for _, outcome := range results {
		switch outcome {
		case submission.OutcomeCorrect:
			correct++
		case submission.OutcomeAlreadySolved:
			already++
		}
	}
	assert.Equal(t, 1, correct)
	assert.Equal(t, 8, already)

	solves := store.Solves()
	require.Len(t, solves, 1)
	team, _ := store.GetTeam(context.Background(), 1)
	assert.Equal(t, 100, team.Points)
}

func TestConcurrentFirstBloodSingleWinner(t *testing.T) {
	store := submission.NewMemStore()
	store.PutChallenge(&submission.Challenge{
		ID:           100,
		FlagType:     "plaintext",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"flag":"ractf{ok}"}`),
		PointsConfig: json.RawMessage(`{"points":100}`),
		AutoUnlock:   true,
	})
	const teams = 10
	for i := int64(1); i <= teams; i++ {
		store.PutTeam(&submission.Team{ID: i})
		store.PutUser(&submission.User{ID: 100 + i, TeamID: teamID(i)})
	}
	co := newCoordinator(store, testSettings())

	var wg sync.WaitGroup
	bloods := make([]bool, teams)
	for i := int64(0); i < teams; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			res, err := co.Submit(context.Background(), submission.SubmitInput{
				UserID: 101 + i, ChallengeID: 100, Flag: "ractf{ok}",
			})
			if err == nil && res.Outcome == submission.OutcomeCorrect {
				bloods[i] = res.FirstBlood
			}
		}(i)
	}
	wg.Wait()

	// 一血恰好授予一次
	count := 0
	for _, b := range bloods {
		if b {
			count++
		}
	}
	assert.Equal(t, 1, count)

	ch, _ := store.GetChallenge(context.Background(), 100)
	require.NotNil(t, ch.FirstBloodID)
	assert.Len(t, store.Solves(), teams)
}

func TestCheckFlag(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	// 未解出前不允许验证
	res, err := co.Check(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeNotSolvedYet, res.Outcome)

	_, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	before := len(store.Solves())

	res, err = co.Check(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
	assert.Equal(t, 0, res.Points)

	res, err = co.Check(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{wrong}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)

	// 只读验证不写台账、不改分
	assert.Len(t, store.Solves(), before)
	team, _ := store.GetTeam(ctx, 1)
	assert.Equal(t, 100, team.Points)
}

func TestCheckFlagBotToggle(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	store.PutUser(&submission.User{ID: 11, Username: "checker", TeamID: teamID(1), IsBot: true})
	ctx := context.Background()

	settings := testSettings()
	co := newCoordinator(store, settings)
	_, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)

	// 默认允许机器人走只读验证
	res, err := co.Check(ctx, submission.SubmitInput{UserID: 11, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)

	settings.AllowBotFlagCheck = false
	co = newCoordinator(store, settings)
	res, err = co.Check(ctx, submission.SubmitInput{UserID: 11, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeBotDenied, res.Outcome)
}

func TestWrongFlagCooldown(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	settings := testSettings()
	settings.WrongFlagCooldownSeconds = 30
	co := newCoordinator(store, settings)
	ctx := context.Background()

	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{wrong}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)

	// 冷却期内再提交被拒绝，连正确flag也不受理
	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCooldown, res.Outcome)
	assert.Greater(t, res.RetryAfter, 0)
	assert.Len(t, store.Solves(), 1)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	store := submission.NewMemStore()
	seedBasic(store)
	co := newCoordinator(store, testSettings())

	hub := events.NewHub()
	var mu sync.Mutex
	var seen []events.Event
	hub.Subscribe(func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
	})
	co.Events = hub
	ctx := context.Background()

	_, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{wrong}"})
	require.NoError(t, err)
	_, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{ok}"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4)
	assert.Equal(t, events.TypeFlagSubmit, seen[0].Type)
	assert.Equal(t, events.TypeFlagReject, seen[1].Type)
	assert.Equal(t, events.TypeFlagSubmit, seen[2].Type)
	assert.Equal(t, events.TypeFlagScore, seen[3].Type)
	assert.Equal(t, 100, seen[3].Points)
	assert.True(t, seen[3].FirstBlood)
}

// 两队对抗场景：A队耗尽次数，B队错一次后解出拿满分和一血
func TestTwoTeamScenario(t *testing.T) {
	store := submission.NewMemStore()
	store.PutTeam(&submission.Team{ID: 1, Name: "alpha"})
	store.PutTeam(&submission.Team{ID: 2, Name: "bravo"})
	store.PutUser(&submission.User{ID: 10, TeamID: teamID(1)})
	store.PutUser(&submission.User{ID: 20, TeamID: teamID(2)})
	store.PutChallenge(&submission.Challenge{
		ID:           100,
		FlagType:     "lenient",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"flag":"ractf{final}"}`),
		PointsConfig: json.RawMessage(`{"points":100,"attempt_limit":2}`),
		AutoUnlock:   true,
	})
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	// A队错3次用光机会
	for i := 0; i < 3; i++ {
		res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{guess}"})
		require.NoError(t, err)
		assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)
	}
	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "RACTF{FINAL}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeAttemptLimit, res.Outcome)

	// B队的次数独立计算
	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 20, ChallengeID: 100, Flag: "ractf{nope}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 20, ChallengeID: 100, Flag: " RACTF{final} "})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
	assert.Equal(t, 100, res.Points)
	assert.True(t, res.FirstBlood)

	teamA, _ := store.GetTeam(ctx, 1)
	teamB, _ := store.GetTeam(ctx, 2)
	assert.Equal(t, 0, teamA.Points)
	assert.Equal(t, 100, teamB.Points)

	ch, _ := store.GetChallenge(ctx, 100)
	require.NotNil(t, ch.FirstBloodID)
	assert.Equal(t, int64(20), *ch.FirstBloodID)
}

// team_dynamic题目的提交走事务内的队伍flag查询
func TestSubmitTeamDynamicFlag(t *testing.T) {
	store := submission.NewMemStore()
	store.PutTeam(&submission.Team{ID: 1})
	store.PutTeam(&submission.Team{ID: 2})
	store.PutUser(&submission.User{ID: 10, TeamID: teamID(1)})
	store.PutUser(&submission.User{ID: 20, TeamID: teamID(2)})
	store.PutChallenge(&submission.Challenge{
		ID:           100,
		FlagType:     "team_dynamic",
		PointsType:   "basic",
		PointsConfig: json.RawMessage(`{"points":100}`),
		AutoUnlock:   true,
	})
	store.PutTeamFlag(1, 100, "ractf{team1}")
	store.PutTeamFlag(2, 100, "ractf{team2}")
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	// 交别队的flag不算对
	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{team2}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "ractf{team1}"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
}

// 配置损坏的题目按错误flag处理，不中断服务
func TestSubmitBrokenConfigFailsClosed(t *testing.T) {
	store := submission.NewMemStore()
	store.PutTeam(&submission.Team{ID: 1})
	store.PutUser(&submission.User{ID: 10, TeamID: teamID(1)})
	store.PutChallenge(&submission.Challenge{
		ID:           100,
		FlagType:     "regexp",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"pattern":"ractf{["}`),
		PointsConfig: json.RawMessage(`{"points":100}`),
		AutoUnlock:   true,
	})
	store.PutChallenge(&submission.Challenge{
		ID:           101,
		FlagType:     "nonexistent",
		PointsType:   "basic",
		FlagConfig:   json.RawMessage(`{"flag":"x"}`),
		PointsConfig: json.RawMessage(`{"points":100}`),
		AutoUnlock:   true,
	})
	co := newCoordinator(store, testSettings())
	ctx := context.Background()

	res, err := co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 100, Flag: "anything"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)

	res, err = co.Submit(ctx, submission.SubmitInput{UserID: 10, ChallengeID: 101, Flag: "x"})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeIncorrect, res.Outcome)

	// 两次都作为错误提交记入台账
	assert.Len(t, store.Solves(), 2)
}

// brokenStore 在一血写入时返回基础设施错误，
// 用于验证事务内已完成的写入会整体回滚
type brokenStore struct {
	*submission.MemStore
}

func (s *brokenStore) InTx(ctx context.Context, fn func(tx submission.Tx) error) error {
	return s.MemStore.InTx(ctx, func(tx submission.Tx) error {
		return fn(&brokenTx{Tx: tx})
	})
}

type brokenTx struct {
	submission.Tx
}

func (t *brokenTx) SetFirstBlood(ctx context.Context, challengeID, userID int64) error {
	return errors.New("connection reset by peer")
}

func TestSubmitRollsBackOnTxFailure(t *testing.T) {
	mem := submission.NewMemStore()
	seedBasic(mem)
	co := newCoordinator(mem, testSettings())
	co.Store = &brokenStore{MemStore: mem}
	ctx := context.Background()

	// 正确flag，加分和台账写入都已完成，一血写入失败
	res, err := co.Submit(ctx, submission.SubmitInput{
		UserID: 10, ChallengeID: 100, Flag: "ractf{ok}",
	})
	require.Error(t, err)
	assert.Nil(t, res)

	// 台账、队伍分、个人分、一血全部回到事务前的状态
	assert.Empty(t, mem.Solves())
	team, err := mem.GetTeam(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, team.Points)
	user, err := mem.GetUser(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, user.Points)
	ch, err := mem.GetChallenge(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, ch.FirstBloodID)

	// 恢复正常存储后同一队伍可以重新提交并正常得分
	co.Store = mem
	res, err = co.Submit(ctx, submission.SubmitInput{
		UserID: 10, ChallengeID: 100, Flag: "ractf{ok}",
	})
	require.NoError(t, err)
	assert.Equal(t, submission.OutcomeCorrect, res.Outcome)
	assert.True(t, res.FirstBlood)
	require.Len(t, mem.Solves(), 1)
}
