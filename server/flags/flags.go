// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ctfcore/server/submission"
)

// 内置flag匹配插件名
const (
	TypePlaintext   = "plaintext"
	TypeLenient     = "lenient"
	TypeRegexp      = "regexp"
	TypeTeamDynamic = "team_dynamic"
)

var errEmptyConfig = errors.New("empty flag config")

// registry 启动时构建的匹配插件注册表，按题目的flag_type解析
var registry = map[string]submission.Matcher{
	TypePlaintext:   plaintextMatcher{},
	TypeLenient:     lenientMatcher{},
	TypeRegexp:      regexpMatcher{},
	TypeTeamDynamic: teamDynamicMatcher{},
}

// Lookup 按名称解析匹配插件
func Lookup(name string) (submission.Matcher, bool) {
	m, ok := registry[name]
	return m, ok
}

// Names 已注册的插件名（管理端下拉选择用）
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func staticFlag(ch *submission.Challenge) (string, error) {
	if len(ch.FlagConfig) == 0 {
		return "", errEmptyConfig
	}
	var cfg struct {
		Flag string `json:"flag"`
	}
	if err := json.Unmarshal(ch.FlagConfig, &cfg); err != nil {
		return "", fmt.Errorf("parse flag config: %w", err)
	}
	if cfg.Flag == "" {
		return "", errEmptyConfig
	}
	return cfg.Flag, nil
}

// plaintextMatcher 静态flag精确匹配
type plaintextMatcher struct{}

func (plaintextMatcher) Check(ctx context.Context, src submission.TeamFlagSource, ch *submission.Challenge, team *submission.Team, user *submission.User, flag string) (bool, error) {
	want, err := staticFlag(ch)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(flag) == want, nil
}

// lenientMatcher 宽松匹配：去除首尾空白并忽略大小写
type lenientMatcher struct{}

func (lenientMatcher) Check(ctx context.Context, src submission.TeamFlagSource, ch *submission.Challenge, team *submission.Team, user *submission.User, flag string) (bool, error) {
	want, err := staticFlag(ch)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(flag), strings.TrimSpace(want)), nil
}

// regexpMatcher 正则匹配（全串匹配），表达式编译失败按配置错误处理
type regexpMatcher struct{}

func (regexpMatcher) Check(ctx context.Context, src submission.TeamFlagSource, ch *submission.Challenge, team *submission.Team, user *submission.User, flag string) (bool, error) {
	if len(ch.FlagConfig) == 0 {
		return false, errEmptyConfig
	}
	var cfg struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(ch.FlagConfig, &cfg); err != nil {
		return false, fmt.Errorf("parse flag config: %w", err)
	}
	if cfg.Pattern == "" {
		return false, errEmptyConfig
	}
	re, err := regexp.Compile("^(?:" + cfg.Pattern + ")$")
	if err != nil {
		return false, fmt.Errorf("compile flag pattern: %w", err)
	}
	return re.MatchString(strings.TrimSpace(flag)), nil
}

// teamDynamicMatcher 队伍动态flag：每个队伍发放不同flag，提交时按队伍查询比对
type teamDynamicMatcher struct{}

func (teamDynamicMatcher) Check(ctx context.Context, src submission.TeamFlagSource, ch *submission.Challenge, team *submission.Team, user *submission.User, flag string) (bool, error) {
	want, ok, err := src.TeamFlag(ctx, team.ID, ch.ID)
	if err != nil {
		return false, fmt.Errorf("load team flag: %w", err)
	}
	if !ok {
		// 队伍尚未发放flag，按不正确处理
		return false, nil
	}
	return strings.TrimSpace(flag) == want, nil
}
