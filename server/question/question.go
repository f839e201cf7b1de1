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

	"ctfcore/server/submission"
)

// ChallengeView 用户端题目条目。未解锁的题目只返回基础字段，
// 不泄露计分配置和题解说明。
type ChallengeView struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	PointsType     string          `json:"pointsType,omitempty"`
	PointsConfig   json.RawMessage `json:"pointsConfig,omitempty"`
	Unlocked       bool            `json:"unlocked"`
	Solved         bool            `json:"solved"`
	SolveCount     int             `json:"solveCount"`
	ReleaseElapsed bool            `json:"releaseElapsed"`
}

// HandleListChallenges 获取题目列表（登录用户）。
// 解锁/已解标注基于队伍已解题目ID集合一次算完，不逐题查库。
func HandleListChallenges(c *gin.Context, db *sql.DB) {
	userID := c.GetInt64("userID")
	now := time.Now()

	var teamID sql.NullInt64
	if err := db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	challenges, err := loadChallenges(db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	solveCounts, err := loadSolveCounts(db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	solved := map[int64]bool{}
	if teamID.Valid {
		solved, err = loadSolvedSet(db, teamID.Int64)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
			return
		}
	}

	views := make([]ChallengeView, 0, len(challenges))
	for _, ch := range challenges {
		unlocked := submission.IsUnlocked(ch, solved, now)
		if !teamID.Valid {
			// 无队伍用户只能看到自动解锁且已放题的题目
			unlocked = ch.AutoUnlock && submission.ReleaseElapsed(ch, now)
		}
		view := ChallengeView{
			ID:             ch.ID,
			Title:          ch.Title,
			Category:       ch.Category,
			Unlocked:       unlocked,
			Solved:         solved[ch.ID],
			SolveCount:     solveCounts[ch.ID],
			ReleaseElapsed: submission.ReleaseElapsed(ch, now),
		}
		if unlocked {
			view.PointsType = ch.PointsType
			view.PointsConfig = ch.PointsConfig
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, views)
}

func loadChallenges(db *sql.DB) ([]*submission.Challenge, error) {
	rows, err := db.Query(`
		SELECT id, title, category, flag_type, points_type, points_config,
		       auto_unlock, release_time, first_blood_id, COALESCE(post_score_explanation, '')
		FROM challenges ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*submission.Challenge)
	var challenges []*submission.Challenge
	for rows.Next() {
		var ch submission.Challenge
		var firstBlood sql.NullInt64
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Category, &ch.FlagType, &ch.PointsType,
			&ch.PointsConfig, &ch.AutoUnlock, &ch.ReleaseTime, &firstBlood, &ch.PostScoreExplanation); err != nil {
			return nil, err
		}
		if firstBlood.Valid {
			ch.FirstBloodID = &firstBlood.Int64
		}
		byID[ch.ID] = &ch
		challenges = append(challenges, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	unlockRows, err := db.Query(`SELECT challenge_id, unlocked_by_id FROM challenge_unlocks`)
	if err != nil {
		return nil, err
	}
	defer unlockRows.Close()
	for unlockRows.Next() {
		var challengeID, unlockedByID int64
		if err := unlockRows.Scan(&challengeID, &unlockedByID); err != nil {
			return nil, err
		}
		if ch, ok := byID[challengeID]; ok {
			ch.UnlockedBy = append(ch.UnlockedBy, unlockedByID)
		}
	}
	return challenges, unlockRows.Err()
}

func loadSolveCounts(db *sql.DB) (map[int64]int, error) {
	rows, err := db.Query(`SELECT challenge_id, COUNT(*) FROM submissions WHERE correct = true GROUP BY challenge_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func loadSolvedSet(db *sql.DB, teamID int64) (map[int64]bool, error) {
	rows, err := db.Query(`SELECT DISTINCT challenge_id FROM submissions WHERE team_id = $1 AND correct = true`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	solved := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		solved[id] = true
	}
	return solved, rows.Err()
}
