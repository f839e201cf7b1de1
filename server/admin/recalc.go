// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"ctfcore/server/logs"
	"ctfcore/server/submission"
)

// HandleRecalculateScores 全量重算分数。
// 按提交时间顺序重放所有正确提交，用当前计分配置重新计算每条的分值，
// 再重建队伍和用户总分。整个过程在一个事务里，期间的新提交会被行锁挡住。
func HandleRecalculateScores(c *gin.Context, db *sql.DB, strategies submission.StrategyLookup) {
	tx, err := db.BeginTx(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	defer tx.Rollback()

	// 锁住全部队伍行，避免重算和提交并发改分
	if _, err := tx.Exec(`SELECT id FROM teams FOR UPDATE`); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	// 加载题目计分配置
	type challengeScoring struct {
		pointsType   string
		pointsConfig json.RawMessage
	}
	challenges := make(map[int64]*submission.Challenge)
	rows, err := tx.Query(`SELECT id, points_type, points_config FROM challenges`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	for rows.Next() {
		var id int64
		var cs challengeScoring
		if err := rows.Scan(&id, &cs.pointsType, &cs.pointsConfig); err != nil {
			continue
		}
		challenges[id] = &submission.Challenge{ID: id, PointsType: cs.pointsType, PointsConfig: cs.pointsConfig}
	}
	rows.Close()

	// 按时间顺序重放正确提交
	solveRows, err := tx.Query(`
		SELECT id, challenge_id, team_id, user_id FROM submissions
		WHERE correct = TRUE ORDER BY submitted_at, id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	type solveRow struct {
		id, challengeID, teamID, userID int64
	}
	var solves []solveRow
	for solveRows.Next() {
		var s solveRow
		if err := solveRows.Scan(&s.id, &s.challengeID, &s.teamID, &s.userID); err != nil {
			continue
		}
		solves = append(solves, s)
	}
	solveRows.Close()

	solveCounts := make(map[int64]int)
	teamPoints := make(map[int64]int)
	userPoints := make(map[int64]int)
	updated := 0
	for _, s := range solves {
		ch, ok := challenges[s.challengeID]
		if !ok {
			continue
		}
		strategy, ok := strategies(ch.PointsType)
		if !ok {
			continue
		}
		points, err := strategy.Score(ch, solveCounts[s.challengeID])
		if err != nil {
			continue
		}
		solveCounts[s.challengeID]++

		if _, err := tx.Exec(`UPDATE submissions SET points = $1 WHERE id = $2`, points, s.id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
			return
		}
		teamPoints[s.teamID] += points
		userPoints[s.userID] += points
		updated++
	}

	// 重建总分（没有正确提交的队伍/用户清零）
	if _, err := tx.Exec(`UPDATE teams SET points = 0`); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if _, err := tx.Exec(`UPDATE users SET points = 0`); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	for teamID, points := range teamPoints {
		if _, err := tx.Exec(`UPDATE teams SET points = $1 WHERE id = $2`, points, teamID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
			return
		}
	}
	for userID, points := range userPoints {
		if _, err := tx.Exec(`UPDATE users SET points = $1 WHERE id = $2`, points, userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLogSimple(db, logs.TypeScoreRecalc, logs.LevelInfo, adminID, c.ClientIP(), "重算全部分数")

	c.JSON(http.StatusOK, gin.H{
		"message": "重算完成",
		"updated": updated,
		"teams":   len(teamPoints),
		"users":   len(userPoints),
	})
}
