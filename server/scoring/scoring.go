// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"ctfcore/server/submission"
)

// 内置计分插件名
const (
	TypeBasic = "basic"
	TypeDecay = "decay"
)

var errEmptyConfig = errors.New("empty points config")

// registry 启动时构建的计分插件注册表，按题目的points_type解析
var registry = map[string]submission.Strategy{
	TypeBasic: basicStrategy{},
	TypeDecay: decayStrategy{},
}

// Lookup 按名称解析计分插件
func Lookup(name string) (submission.Strategy, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names 已注册的插件名
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// basicStrategy 固定分值
type basicStrategy struct{}

func (basicStrategy) Score(ch *submission.Challenge, solveCount int) (int, error) {
	if len(ch.PointsConfig) == 0 {
		return 0, errEmptyConfig
	}
	var cfg struct {
		Points int `json:"points"`
	}
	if err := json.Unmarshal(ch.PointsConfig, &cfg); err != nil {
		return 0, fmt.Errorf("parse points config: %w", err)
	}
	if cfg.Points <= 0 {
		return 0, errEmptyConfig
	}
	return cfg.Points, nil
}

func (basicStrategy) IncorrectPenalty(ch *submission.Challenge) int {
	return 0
}

// decayStrategy 动态分值 - 使用指数衰减公式
// S(N) = Smin + (Smax - Smin) × e^(-(N-1)/(10D))
type decayStrategy struct{}

type decayConfig struct {
	Initial    int `json:"initial"`
	Min        int `json:"min"`
	Difficulty int `json:"difficulty"`
}

func (decayStrategy) Score(ch *submission.Challenge, solveCount int) (int, error) {
	if len(ch.PointsConfig) == 0 {
		return 0, errEmptyConfig
	}
	var cfg decayConfig
	if err := json.Unmarshal(ch.PointsConfig, &cfg); err != nil {
		return 0, fmt.Errorf("parse points config: %w", err)
	}
	if cfg.Initial <= 0 || cfg.Min < 0 || cfg.Min > cfg.Initial {
		return 0, fmt.Errorf("invalid decay config: initial=%d min=%d", cfg.Initial, cfg.Min)
	}
	return Decay(cfg.Initial, cfg.Min, cfg.Difficulty, solveCount), nil
}

func (decayStrategy) IncorrectPenalty(ch *submission.Challenge) int {
	return 0
}

// Decay 计算题目当前动态分数。solveCount为已有的正确解题数，
// 第一个解出的队伍拿满initial分。
func Decay(initial, min, difficulty, solveCount int) int {
	// 如果还没人解出，返回原始分值
	if solveCount == 0 {
		return initial
	}
	// 确保难度系数在有效范围
	if difficulty < 1 {
		difficulty = 1
	} else if difficulty > 10 {
		difficulty = 10
	}
	// 指数衰减公式
	decayFactor := math.Exp(-float64(solveCount) / (float64(difficulty) * 10.0))
	score := float64(min) + float64(initial-min)*decayFactor
	// 确保不低于最低分
	if score < float64(min) {
		return min
	}
	return int(math.Round(score))
}
