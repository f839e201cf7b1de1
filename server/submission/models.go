// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"encoding/json"
	"time"
)

// Challenge 题目信息（flag配置与计分配置均为JSON块，由对应插件解析）
type Challenge struct {
	ID                   int64           `json:"id"`
	Title                string          `json:"title"`
	Category             string          `json:"category"`
	FlagType             string          `json:"flagType"`   // plaintext | lenient | regexp | team_dynamic
	PointsType           string          `json:"pointsType"` // basic | decay
	FlagConfig           json.RawMessage `json:"-"`          // 只有管理员可见
	PointsConfig         json.RawMessage `json:"pointsConfig,omitempty"`
	AutoUnlock           bool            `json:"autoUnlock"`
	ReleaseTime          time.Time       `json:"releaseTime"`
	FirstBloodID         *int64          `json:"firstBloodId"`
	PostScoreExplanation string          `json:"postScoreExplanation,omitempty"`
	UnlockedBy           []int64         `json:"unlockedBy"` // 前置题目ID列表
}

// AttemptLimit 从计分配置中读取提交次数限制，0表示不限制
func (ch *Challenge) AttemptLimit() int {
	if len(ch.PointsConfig) == 0 {
		return 0
	}
	var cfg struct {
		AttemptLimit int `json:"attempt_limit"`
	}
	if err := json.Unmarshal(ch.PointsConfig, &cfg); err != nil {
		return 0
	}
	if cfg.AttemptLimit < 0 {
		return 0
	}
	return cfg.AttemptLimit
}

// Team 队伍信息，points只允许协调器在行锁内修改
type Team struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Points    int    `json:"points"`
	CaptainID int64  `json:"captainId"`
}

// User 用户信息
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	TeamID      *int64 `json:"teamId"`
	Points      int    `json:"points"`
	IsStaff     bool   `json:"isStaff"`
	IsBot       bool   `json:"isBot"`
}

// Solve 提交记录（台账条目，只追加，不修改不删除）
type Solve struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challengeId"`
	TeamID      int64     `json:"teamId"`
	UserID      int64     `json:"userId"`
	Flag        string    `json:"flag"`
	Correct     bool      `json:"correct"`
	Points      int       `json:"points"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}
