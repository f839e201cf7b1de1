// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ctfcore/server/config"
	"ctfcore/server/logs"
)

// settingsView 比赛设置的传输结构（时间用RFC3339字符串，空串表示未设置）
type settingsView struct {
	StartTime                            string `json:"startTime"`
	EndTime                              string `json:"endTime"`
	EnableFlagSubmission                 bool   `json:"enableFlagSubmission"`
	EnableFlagSubmissionAfterCompetition bool   `json:"enableFlagSubmissionAfterCompetition"`
	AllowBotFlagCheck                    bool   `json:"allowBotFlagCheck"`
	WrongFlagCooldownSeconds             int    `json:"wrongFlagCooldownSeconds"`
}

func toView(s config.Settings) settingsView {
	v := settingsView{
		EnableFlagSubmission:                 s.EnableFlagSubmission,
		EnableFlagSubmissionAfterCompetition: s.EnableFlagSubmissionAfterEnd,
		AllowBotFlagCheck:                    s.AllowBotFlagCheck,
		WrongFlagCooldownSeconds:             s.WrongFlagCooldownSeconds,
	}
	if !s.StartTime.IsZero() {
		v.StartTime = s.StartTime.Format(time.RFC3339)
	}
	if !s.EndTime.IsZero() {
		v.EndTime = s.EndTime.Format(time.RFC3339)
	}
	return v
}

// HandleGetSettings 获取比赛设置
func HandleGetSettings(c *gin.Context, svc *config.Service) {
	settings, err := svc.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toView(settings))
}

// HandleUpdateSettings 更新比赛设置
func HandleUpdateSettings(c *gin.Context, db *sql.DB, svc *config.Service) {
	var req settingsView
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	settings := config.Settings{
		EnableFlagSubmission:         req.EnableFlagSubmission,
		EnableFlagSubmissionAfterEnd: req.EnableFlagSubmissionAfterCompetition,
		AllowBotFlagCheck:            req.AllowBotFlagCheck,
		WrongFlagCooldownSeconds:     req.WrongFlagCooldownSeconds,
	}
	if req.StartTime != "" {
		t, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_START_TIME"})
			return
		}
		settings.StartTime = t
	}
	if req.EndTime != "" {
		t, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_END_TIME"})
			return
		}
		settings.EndTime = t
	}
	if !settings.EndTime.IsZero() && !settings.StartTime.IsZero() && settings.EndTime.Before(settings.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "END_BEFORE_START"})
		return
	}
	if settings.WrongFlagCooldownSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_COOLDOWN"})
		return
	}

	if err := svc.Save(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	logs.WriteLogSimple(db, logs.TypeSettingsChange, logs.LevelInfo, userID, c.ClientIP(), "修改比赛设置")

	c.JSON(http.StatusOK, gin.H{"message": "设置已保存"})
}
