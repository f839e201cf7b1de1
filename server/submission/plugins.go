// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import "context"

// Matcher flag匹配插件。按题目的flag_type从注册表解析，
// 只读题目配置（team_dynamic额外通过src读队伍flag），对计分没有副作用。
// 配置损坏时返回error，协调器按"不正确"处理，绝不让事务失控中断。
type Matcher interface {
	Check(ctx context.Context, src TeamFlagSource, ch *Challenge, team *Team, user *User, flag string) (bool, error)
}

// Strategy 计分插件。按题目的points_type从注册表解析。
// Score只计算分值，不做任何写入；队伍/用户加分和台账追加由协调器
// 在行锁内统一执行，因此任何策略在锁下天然幂等安全。
type Strategy interface {
	// Score 根据題目配置和当前正确解题数计算本次得分
	Score(ch *Challenge, solveCount int) (int, error)
	// IncorrectPenalty 错误提交的扣分，0表示不扣分
	IncorrectPenalty(ch *Challenge) int
}

// MatcherLookup / StrategyLookup 注册表查询函数，启动时由main注入
type MatcherLookup func(name string) (Matcher, bool)
type StrategyLookup func(name string) (Strategy, bool)
