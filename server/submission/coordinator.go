// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ctfcore/server/config"
	"ctfcore/server/events"
)

// 提交结果代码
const (
	OutcomeCorrect        = "correct_flag"
	OutcomeIncorrect      = "incorrect_flag"
	OutcomeAlreadySolved  = "already_solved_challenge"
	OutcomeAttemptLimit   = "attempt_limit_reached"
	OutcomeDisabled       = "flag_submission_disabled"
	OutcomeBadRequest     = "bad_request"
	OutcomeNoTeam         = "no_team"
	OutcomeBotDenied      = "bot_denied"
	OutcomeNotSolvedYet   = "havent_solved_challenge"
	OutcomeCooldown       = "submission_cooldown"
)

// 拒绝事件原因
const (
	reasonIncorrectFlag  = "incorrect_flag"
	reasonAttemptLimit   = "attempt_limit_reached"
	reasonConfigError    = "config_error"
)

// SubmitInput 一次flag提交
type SubmitInput struct {
	UserID      int64
	ChallengeID int64
	Flag        string
	IPAddress   string
}

// Result 提交/验证的业务结果。业务上的拒绝（已解出、次数超限、flag错误等）
// 都是正常结果而不是error；error只用于基础设施故障。
type Result struct {
	Outcome     string `json:"-"`
	Correct     bool   `json:"correct"`
	Points      int    `json:"points,omitempty"`
	FirstBlood  bool   `json:"firstBlood,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	RetryAfter  int    `json:"retryAfter,omitempty"`
}

// Cooldown 错误提交冷却（可选，redis实现；为nil时退回台账时间戳查询）
type Cooldown interface {
	Remaining(ctx context.Context, teamID int64) (time.Duration, error)
	MarkWrong(ctx context.Context, teamID int64, window time.Duration) error
}

// Coordinator 提交协调器：在单个事务内串联解锁检查、重复解题检查、
// 次数限制、flag匹配、计分和一血归属。队伍行、用户行、题目行按固定
// 顺序加排他锁，并发提交之间完全串行化，解题计数和分数不会被写坏。
type Coordinator struct {
	Store      Store
	Matchers   MatcherLookup
	Strategies StrategyLookup
	Settings   func(ctx context.Context) (config.Settings, error)
	Events     *events.Hub
	Cooldown   Cooldown

	// Now 便于测试注入时钟，为nil时使用time.Now
	Now func() time.Time
}

func (co *Coordinator) now() time.Time {
	if co.Now != nil {
		return co.Now()
	}
	return time.Now()
}

func (co *Coordinator) publish(evs []events.Event) {
	if co.Events == nil {
		return
	}
	for _, ev := range evs {
		co.Events.Publish(ev)
	}
}

// gate 提交与验证共用的前置检查（不取任何锁）
func (co *Coordinator) gate(ctx context.Context, now time.Time) (config.Settings, *Result, error) {
	settings, err := co.Settings(ctx)
	if err != nil {
		return settings, nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.EnableFlagSubmission ||
		(settings.Ended(now) && !settings.EnableFlagSubmissionAfterEnd) ||
		!settings.Started(now) {
		return settings, &Result{Outcome: OutcomeDisabled}, nil
	}
	return settings, nil, nil
}

// Submit 处理一次flag提交
func (co *Coordinator) Submit(ctx context.Context, in SubmitInput) (*Result, error) {
	now := co.now()

	settings, rejected, err := co.gate(ctx, now)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return rejected, nil
	}

	if strings.TrimSpace(in.Flag) == "" || in.ChallengeID == 0 {
		return &Result{Outcome: OutcomeBadRequest}, nil
	}

	user, err := co.Store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.IsBot {
		return &Result{Outcome: OutcomeBotDenied}, nil
	}
	if user.TeamID == nil {
		return &Result{Outcome: OutcomeNoTeam}, nil
	}
	teamID := *user.TeamID

	// 错误提交冷却检查
	if settings.WrongFlagCooldownSeconds > 0 {
		if remaining, err := co.cooldownRemaining(ctx, teamID, settings); err == nil && remaining > 0 {
			return &Result{Outcome: OutcomeCooldown, RetryAfter: int(remaining.Seconds()) + 1}, nil
		}
	}

	var result *Result
	var pending []events.Event
	markWrong := false

	err = co.Store.InTx(ctx, func(tx Tx) error {
		// 固定加锁顺序：队伍 → 用户 → 题目
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("lock team: %w", err)
		}
		lockedUser, err := tx.LockUser(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		ch, err := tx.LockChallenge(ctx, in.ChallengeID)
		if err != nil {
			return fmt.Errorf("lock challenge: %w", err)
		}

		// 加锁后复查：已解出或未解锁统一返回already_solved，
		// 避免对已解出的情况泄露解锁状态，也省掉一次额外往返
		solvedBefore, err := tx.ExistsCorrectSolve(ctx, ch.ID, team.ID)
		if err != nil {
			return err
		}
		if solvedBefore {
			result = &Result{Outcome: OutcomeAlreadySolved}
			return nil
		}
		solved, err := tx.SolvedChallengeIDs(ctx, team.ID)
		if err != nil {
			return err
		}
		if !IsUnlocked(ch, solved, now) {
			result = &Result{Outcome: OutcomeAlreadySolved}
			return nil
		}

		// 次数限制检查放在flag匹配之前，超限的题目不泄露正确性信息。
		// 边界沿用count > limit：即第limit+1次仍然允许，之后才拦截。
		if limit := ch.AttemptLimit(); limit > 0 {
			count, err := tx.CountAttempts(ctx, ch.ID, team.ID)
			if err != nil {
				return err
			}
			if count > limit {
				pending = append(pending, events.Event{
					Type: events.TypeFlagReject, UserID: user.ID, TeamID: team.ID,
					ChallengeID: ch.ID, Flag: in.Flag, Reason: reasonAttemptLimit, At: now,
				})
				result = &Result{Outcome: OutcomeAttemptLimit}
				return nil
			}
		}

		pending = append(pending, events.Event{
			Type: events.TypeFlagSubmit, UserID: user.ID, TeamID: team.ID,
			ChallengeID: ch.ID, Flag: in.Flag, At: now,
		})

		strategy, okStrategy := co.Strategies(ch.PointsType)
		matcher, okMatcher := co.Matchers(ch.FlagType)

		correct := false
		if okMatcher && okStrategy {
			correct, err = matcher.Check(ctx, tx, ch, team, lockedUser, in.Flag)
			if err != nil {
				// 配置损坏按不正确处理，不中断事务
				log.Printf("flag matcher %q challenge %d: %v", ch.FlagType, ch.ID, err)
				correct = false
			}
		} else {
			log.Printf("unknown flag_type %q or points_type %q for challenge %d", ch.FlagType, ch.PointsType, ch.ID)
		}

		if !correct {
			penalty := 0
			if okStrategy {
				penalty = strategy.IncorrectPenalty(ch)
			}
			if err := tx.InsertSolve(ctx, &Solve{
				ChallengeID: ch.ID, TeamID: team.ID, UserID: user.ID,
				Flag: in.Flag, Correct: false, Points: -penalty,
				IPAddress: in.IPAddress, SubmittedAt: now,
			}); err != nil {
				return err
			}
			if penalty > 0 {
				if err := tx.AddTeamPoints(ctx, team.ID, -penalty); err != nil {
					return err
				}
				if err := tx.AddUserPoints(ctx, user.ID, -penalty); err != nil {
					return err
				}
			}
			reason := reasonIncorrectFlag
			if !okMatcher || !okStrategy {
				reason = reasonConfigError
			}
			pending = append(pending, events.Event{
				Type: events.TypeFlagReject, UserID: user.ID, TeamID: team.ID,
				ChallengeID: ch.ID, Flag: in.Flag, Reason: reason, At: now,
			})
			markWrong = true
			result = &Result{Outcome: OutcomeIncorrect}
			return nil
		}

		solveCount, err := tx.CountCorrectSolves(ctx, ch.ID)
		if err != nil {
			return err
		}
		points, err := strategy.Score(ch, solveCount)
		if err != nil {
			return fmt.Errorf("score challenge %d: %w", ch.ID, err)
		}

		if err := tx.AddTeamPoints(ctx, team.ID, points); err != nil {
			return err
		}
		if err := tx.AddUserPoints(ctx, user.ID, points); err != nil {
			return err
		}
		if err := tx.InsertSolve(ctx, &Solve{
			ChallengeID: ch.ID, TeamID: team.ID, UserID: user.ID,
			Flag: in.Flag, Correct: true, Points: points,
			IPAddress: in.IPAddress, SubmittedAt: now,
		}); err != nil {
			return err
		}

		// 一血只赋值一次：锁内先提交的获胜，之后不再改写
		firstBlood := false
		if ch.FirstBloodID == nil {
			if err := tx.SetFirstBlood(ctx, ch.ID, user.ID); err != nil {
				return err
			}
			firstBlood = true
		}

		pending = append(pending, events.Event{
			Type: events.TypeFlagScore, UserID: user.ID, TeamID: team.ID,
			ChallengeID: ch.ID, Flag: in.Flag, Points: points, FirstBlood: firstBlood, At: now,
		})
		result = &Result{
			Outcome:     OutcomeCorrect,
			Correct:     true,
			Points:      points,
			FirstBlood:  firstBlood,
			Explanation: ch.PostScoreExplanation,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTxTimeout, err)
		}
		return nil, err
	}

	// 事件在事务提交之后派发，订阅者失败不影响已落库的结果
	co.publish(pending)

	if markWrong && co.Cooldown != nil && settings.WrongFlagCooldownSeconds > 0 {
		window := time.Duration(settings.WrongFlagCooldownSeconds) * time.Second
		if err := co.Cooldown.MarkWrong(ctx, teamID, window); err != nil {
			log.Printf("cooldown mark team %d: %v", teamID, err)
		}
	}

	return result, nil
}

// Check 只读flag验证：队伍已解出该题时允许重新验证任意flag，
// 不写台账、不计分、不消耗提交次数。
func (co *Coordinator) Check(ctx context.Context, in SubmitInput) (*Result, error) {
	now := co.now()

	settings, rejected, err := co.gate(ctx, now)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return rejected, nil
	}

	if strings.TrimSpace(in.Flag) == "" || in.ChallengeID == 0 {
		return &Result{Outcome: OutcomeBadRequest}, nil
	}

	user, err := co.Store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.IsBot && !settings.AllowBotFlagCheck {
		return &Result{Outcome: OutcomeBotDenied}, nil
	}
	if user.TeamID == nil {
		return &Result{Outcome: OutcomeNoTeam}, nil
	}

	team, err := co.Store.GetTeam(ctx, *user.TeamID)
	if err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}
	ch, err := co.Store.GetChallenge(ctx, in.ChallengeID)
	if err != nil {
		return nil, err
	}

	solved, err := co.Store.ExistsCorrectSolve(ctx, ch.ID, team.ID)
	if err != nil {
		return nil, err
	}
	if !solved {
		return &Result{Outcome: OutcomeNotSolvedYet}, nil
	}

	matcher, ok := co.Matchers(ch.FlagType)
	if !ok {
		return &Result{Outcome: OutcomeIncorrect}, nil
	}
	correct, err := matcher.Check(ctx, co.Store, ch, team, user, in.Flag)
	if err != nil {
		log.Printf("flag matcher %q challenge %d: %v", ch.FlagType, ch.ID, err)
		correct = false
	}
	if !correct {
		return &Result{Outcome: OutcomeIncorrect}, nil
	}
	return &Result{
		Outcome:     OutcomeCorrect,
		Correct:     true,
		Explanation: ch.PostScoreExplanation,
	}, nil
}

func (co *Coordinator) cooldownRemaining(ctx context.Context, teamID int64, settings config.Settings) (time.Duration, error) {
	if co.Cooldown != nil {
		return co.Cooldown.Remaining(ctx, teamID)
	}
	elapsed, err := co.Store.LastIncorrectSeconds(ctx, teamID)
	if err != nil || elapsed < 0 {
		return 0, err
	}
	window := float64(settings.WrongFlagCooldownSeconds)
	if elapsed < window {
		return time.Duration((window - elapsed) * float64(time.Second)), nil
	}
	return 0, nil
}
