// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package question

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ctfcore/server/flags"
	"ctfcore/server/scoring"
)

// AdminChallenge 管理端题目信息（含flag配置）
type AdminChallenge struct {
	ID                   int64           `json:"id"`
	Title                string          `json:"title"`
	Category             string          `json:"category"`
	FlagType             string          `json:"flagType"`
	PointsType           string          `json:"pointsType"`
	FlagConfig           json.RawMessage `json:"flagConfig"`
	PointsConfig         json.RawMessage `json:"pointsConfig"`
	AutoUnlock           bool            `json:"autoUnlock"`
	ReleaseTime          string          `json:"releaseTime"`
	FirstBloodID         *int64          `json:"firstBloodId"`
	PostScoreExplanation string          `json:"postScoreExplanation"`
	UnlockedBy           []int64         `json:"unlockedBy"`
}

type challengeRequest struct {
	Title                string          `json:"title" binding:"required"`
	Category             string          `json:"category"`
	FlagType             string          `json:"flagType" binding:"required"`
	PointsType           string          `json:"pointsType" binding:"required"`
	FlagConfig           json.RawMessage `json:"flagConfig" binding:"required"`
	PointsConfig         json.RawMessage `json:"pointsConfig" binding:"required"`
	AutoUnlock           bool            `json:"autoUnlock"`
	ReleaseTime          string          `json:"releaseTime"`
	PostScoreExplanation string          `json:"postScoreExplanation"`
	UnlockedBy           []int64         `json:"unlockedBy"`
}

func (r *challengeRequest) validate() string {
	if _, ok := flags.Lookup(r.FlagType); !ok {
		return "UNKNOWN_FLAG_TYPE"
	}
	if _, ok := scoring.Lookup(r.PointsType); !ok {
		return "UNKNOWN_POINTS_TYPE"
	}
	return ""
}

func (r *challengeRequest) releaseTime() (time.Time, bool) {
	if r.ReleaseTime == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, r.ReleaseTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HandleListChallengesAdmin 管理端题目列表
func HandleListChallengesAdmin(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT id, title, category, flag_type, points_type, flag_config, points_config,
		       auto_unlock, release_time, first_blood_id, COALESCE(post_score_explanation, '')
		FROM challenges ORDER BY id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	byID := make(map[int64]*AdminChallenge)
	var challenges []*AdminChallenge
	for rows.Next() {
		var ch AdminChallenge
		var firstBlood sql.NullInt64
		var releaseTime time.Time
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Category, &ch.FlagType, &ch.PointsType,
			&ch.FlagConfig, &ch.PointsConfig, &ch.AutoUnlock, &releaseTime, &firstBlood,
			&ch.PostScoreExplanation); err != nil {
			continue
		}
		ch.ReleaseTime = releaseTime.Format(time.RFC3339)
		if firstBlood.Valid {
			ch.FirstBloodID = &firstBlood.Int64
		}
		ch.UnlockedBy = []int64{}
		byID[ch.ID] = &ch
		challenges = append(challenges, &ch)
	}

	unlockRows, err := db.Query(`SELECT challenge_id, unlocked_by_id FROM challenge_unlocks`)
	if err == nil {
		defer unlockRows.Close()
		for unlockRows.Next() {
			var challengeID, unlockedByID int64
			if err := unlockRows.Scan(&challengeID, &unlockedByID); err != nil {
				continue
			}
			if ch, ok := byID[challengeID]; ok {
				ch.UnlockedBy = append(ch.UnlockedBy, unlockedByID)
			}
		}
	}

	if challenges == nil {
		challenges = []*AdminChallenge{}
	}
	c.JSON(http.StatusOK, challenges)
}

// HandleCreateChallenge 创建题目
func HandleCreateChallenge(c *gin.Context, db *sql.DB) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if code := req.validate(); code != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": code})
		return
	}
	releaseTime, ok := req.releaseTime()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_RELEASE_TIME"})
		return
	}

	var id int64
	err := db.QueryRow(`
		INSERT INTO challenges (title, category, flag_type, points_type, flag_config, points_config,
			auto_unlock, release_time, post_score_explanation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		req.Title, req.Category, req.FlagType, req.PointsType, []byte(req.FlagConfig), []byte(req.PointsConfig),
		req.AutoUnlock, releaseTime, req.PostScoreExplanation).Scan(&id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	for _, prereq := range req.UnlockedBy {
		db.Exec(`INSERT INTO challenge_unlocks (challenge_id, unlocked_by_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, prereq)
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleUpdateChallenge 更新题目（一血归属不在此处修改）
func HandleUpdateChallenge(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if code := req.validate(); code != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": code})
		return
	}
	releaseTime, ok := req.releaseTime()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_RELEASE_TIME"})
		return
	}

	result, err := db.Exec(`
		UPDATE challenges SET title = $1, category = $2, flag_type = $3, points_type = $4,
			flag_config = $5, points_config = $6, auto_unlock = $7, release_time = $8,
			post_score_explanation = $9, updated_at = CURRENT_TIMESTAMP
		WHERE id = $10`,
		req.Title, req.Category, req.FlagType, req.PointsType, []byte(req.FlagConfig), []byte(req.PointsConfig),
		req.AutoUnlock, releaseTime, req.PostScoreExplanation, challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}

	db.Exec(`DELETE FROM challenge_unlocks WHERE challenge_id = $1`, challengeID)
	for _, prereq := range req.UnlockedBy {
		db.Exec(`INSERT INTO challenge_unlocks (challenge_id, unlocked_by_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			challengeID, prereq)
	}

	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// HandleDeleteChallenge 删除题目
func HandleDeleteChallenge(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	db.Exec(`DELETE FROM challenge_unlocks WHERE challenge_id = $1 OR unlocked_by_id = $1`, challengeID)
	result, err := db.Exec(`DELETE FROM challenges WHERE id = $1`, challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// HandlePluginTypes 已注册的flag/计分插件名（管理端下拉用）
func HandlePluginTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"flagTypes":   flags.Names(),
		"pointsTypes": scoring.Names(),
	})
}
