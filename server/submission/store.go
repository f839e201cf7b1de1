// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"errors"
)

var (
	// ErrNotFound 实体不存在
	ErrNotFound = errors.New("not found")
	// ErrTxTimeout 行锁等待超时，调用方应当重试
	ErrTxTimeout = errors.New("transaction timeout")
)

// Tx 单次提交事务内的存储视图。所有方法都在同一事务中执行，
// Lock*方法以排他行锁读取实体，加锁顺序必须为 队伍 → 用户 → 题目，
// 固定顺序保证并发提交之间不会互相死锁。
type Tx interface {
	LockTeam(ctx context.Context, id int64) (*Team, error)
	LockUser(ctx context.Context, id int64) (*User, error)
	LockChallenge(ctx context.Context, id int64) (*Challenge, error)

	// 台账查询（必须在加锁后调用，读到的才是与并发提交隔离的快照）
	ExistsCorrectSolve(ctx context.Context, challengeID, teamID int64) (bool, error)
	CountAttempts(ctx context.Context, challengeID, teamID int64) (int, error)
	CountCorrectSolves(ctx context.Context, challengeID int64) (int, error)
	SolvedChallengeIDs(ctx context.Context, teamID int64) (map[int64]bool, error)

	// 写入（台账只追加；分数与一血在同一事务内修改）
	InsertSolve(ctx context.Context, s *Solve) error
	AddTeamPoints(ctx context.Context, teamID int64, points int) error
	AddUserPoints(ctx context.Context, userID int64, points int) error
	SetFirstBlood(ctx context.Context, challengeID, userID int64) error

	// TeamFlag 动态flag查询（team_dynamic题型使用）
	TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error)
}

// Store 提交核心依赖的存储接口。InTx内的任何错误都会整体回滚，
// 台账写入、加分、一血赋值要么全部可见要么全部不可见。
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// 只读路径（flag验证接口），不取写锁，但不能读到未提交的计分事务
	GetUser(ctx context.Context, id int64) (*User, error)
	GetTeam(ctx context.Context, id int64) (*Team, error)
	GetChallenge(ctx context.Context, id int64) (*Challenge, error)
	ExistsCorrectSolve(ctx context.Context, challengeID, teamID int64) (bool, error)
	TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error)

	// LastIncorrectAt 队伍最近一次错误提交距今的秒数（用于冷却检查，无记录返回-1）
	LastIncorrectSeconds(ctx context.Context, teamID int64) (float64, error)
}

// TeamFlagSource flag匹配插件读取队伍动态flag的最小接口，
// 事务内由Tx实现，只读路径由Store实现。
type TeamFlagSource interface {
	TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error)
}
