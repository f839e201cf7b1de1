// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package config

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// 配置键常量
const (
	KeyStartTime              = "start_time"
	KeyEndTime                = "end_time"
	KeyEnableFlagSubmission   = "enable_flag_submission"
	KeyEnableSubmissionAfter  = "enable_flag_submission_after_competition"
	KeyAllowBotFlagCheck      = "allow_bot_flag_check"
	KeyWrongFlagCooldown      = "wrong_flag_cooldown_seconds"
)

// Settings 比赛时钟与功能开关
type Settings struct {
	StartTime                        time.Time `json:"startTime"`
	EndTime                          time.Time `json:"endTime"` // 零值表示不设结束时间
	EnableFlagSubmission             bool      `json:"enableFlagSubmission"`
	EnableFlagSubmissionAfterEnd     bool      `json:"enableFlagSubmissionAfterCompetition"`
	AllowBotFlagCheck                bool      `json:"allowBotFlagCheck"`
	WrongFlagCooldownSeconds         int       `json:"wrongFlagCooldownSeconds"`
}

// Defaults 默认配置
func Defaults() Settings {
	return Settings{
		EnableFlagSubmission:         true,
		EnableFlagSubmissionAfterEnd: false,
		AllowBotFlagCheck:            true,
		WrongFlagCooldownSeconds:     10,
	}
}

// Service 从 system_settings 键值表读写配置
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Load 加载全部配置项，缺失的键使用默认值
func (s *Service) Load(ctx context.Context) (Settings, error) {
	settings := Defaults()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM system_settings WHERE key IN ($1, $2, $3, $4, $5, $6)`,
		KeyStartTime, KeyEndTime, KeyEnableFlagSubmission, KeyEnableSubmissionAfter, KeyAllowBotFlagCheck, KeyWrongFlagCooldown)
	if err != nil {
		return settings, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case KeyStartTime:
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				settings.StartTime = time.Unix(v, 0)
			}
		case KeyEndTime:
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v > 0 {
				settings.EndTime = time.Unix(v, 0)
			}
		case KeyEnableFlagSubmission:
			settings.EnableFlagSubmission = value == "true"
		case KeyEnableSubmissionAfter:
			settings.EnableFlagSubmissionAfterEnd = value == "true"
		case KeyAllowBotFlagCheck:
			settings.AllowBotFlagCheck = value == "true"
		case KeyWrongFlagCooldown:
			if v, err := strconv.Atoi(value); err == nil && v >= 0 {
				settings.WrongFlagCooldownSeconds = v
			}
		}
	}
	return settings, rows.Err()
}

// Set 更新单个配置项
func (s *Service) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

// Save 批量保存配置
func (s *Service) Save(ctx context.Context, settings Settings) error {
	values := map[string]string{
		KeyStartTime:             strconv.FormatInt(settings.StartTime.Unix(), 10),
		KeyEnableFlagSubmission:  strconv.FormatBool(settings.EnableFlagSubmission),
		KeyEnableSubmissionAfter: strconv.FormatBool(settings.EnableFlagSubmissionAfterEnd),
		KeyAllowBotFlagCheck:     strconv.FormatBool(settings.AllowBotFlagCheck),
		KeyWrongFlagCooldown:     strconv.Itoa(settings.WrongFlagCooldownSeconds),
	}
	if settings.EndTime.IsZero() {
		values[KeyEndTime] = "0"
	} else {
		values[KeyEndTime] = strconv.FormatInt(settings.EndTime.Unix(), 10)
	}

	for key, value := range values {
		if err := s.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Started 比赛是否已开始
func (s Settings) Started(now time.Time) bool {
	return !s.StartTime.After(now)
}

// Ended 比赛是否已结束
func (s Settings) Ended(now time.Time) bool {
	return !s.EndTime.IsZero() && now.After(s.EndTime)
}
