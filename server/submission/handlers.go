// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SubmitFlagRequest 提交flag请求
type SubmitFlagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// HandleSubmitFlag 提交flag
func HandleSubmitFlag(c *gin.Context, co *Coordinator) {
	challengeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "bad_request"})
		return
	}

	var req SubmitFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "bad_request"})
		return
	}

	result, err := co.Submit(c.Request.Context(), SubmitInput{
		UserID:      c.GetInt64("userID"),
		ChallengeID: challengeID,
		Flag:        req.Flag,
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		writeCoordinatorError(c, err)
		return
	}
	writeResult(c, result)
}

// HandleCheckFlag 只读flag验证（已解出该题的队伍确认flag是否正确）
func HandleCheckFlag(c *gin.Context, co *Coordinator) {
	challengeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "bad_request"})
		return
	}

	var req SubmitFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "bad_request"})
		return
	}

	result, err := co.Check(c.Request.Context(), SubmitInput{
		UserID:      c.GetInt64("userID"),
		ChallengeID: challengeID,
		Flag:        req.Flag,
	})
	if err != nil {
		writeCoordinatorError(c, err)
		return
	}
	writeResult(c, result)
}

func writeCoordinatorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "challenge not found"})
	case errors.Is(err, ErrTxTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "RETRY_LATER", "message": "submission busy, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
	}
}

func writeResult(c *gin.Context, r *Result) {
	body := gin.H{"correct": r.Correct, "message": r.Outcome}
	if r.Explanation != "" {
		body["explanation"] = r.Explanation
	}
	if r.Points > 0 {
		body["points"] = r.Points
	}
	if r.FirstBlood {
		body["firstBlood"] = true
	}
	if r.RetryAfter > 0 {
		body["retryAfter"] = r.RetryAfter
	}

	switch r.Outcome {
	case OutcomeCorrect, OutcomeIncorrect, OutcomeAttemptLimit:
		c.JSON(http.StatusOK, body)
	case OutcomeBadRequest:
		c.JSON(http.StatusBadRequest, body)
	case OutcomeCooldown:
		c.JSON(http.StatusTooManyRequests, body)
	default:
		// 已解出/未解锁、提交关闭、无队伍、bot等策略性拒绝
		c.JSON(http.StatusForbidden, body)
	}
}

// ========== 记分板与解题统计 ==========

// TeamScore 记分板条目
type TeamScore struct {
	Rank       int    `json:"rank"`
	TeamID     int64  `json:"teamId"`
	TeamName   string `json:"teamName"`
	Points     int    `json:"points"`
	SolveCount int    `json:"solveCount"`
	LastSolve  string `json:"lastSolve,omitempty"`
}

// HandleGetScoreboard 获取排行榜。分数直接读取队伍累计分，
// 同分按最后解题时间先到者在前。
func HandleGetScoreboard(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT t.id, t.name, t.points,
		       COUNT(s.id) FILTER (WHERE s.correct), MAX(s.submitted_at) FILTER (WHERE s.correct)
		FROM teams t
		LEFT JOIN submissions s ON s.team_id = t.id
		GROUP BY t.id, t.name, t.points`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	var scores []TeamScore
	lastSolves := make(map[int64]time.Time)
	for rows.Next() {
		var ts TeamScore
		var lastSolve sql.NullTime
		if err := rows.Scan(&ts.TeamID, &ts.TeamName, &ts.Points, &ts.SolveCount, &lastSolve); err != nil {
			continue
		}
		if lastSolve.Valid {
			ts.LastSolve = lastSolve.Time.Format("2006-01-02 15:04:05")
			lastSolves[ts.TeamID] = lastSolve.Time
		}
		scores = append(scores, ts)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Points != scores[j].Points {
			return scores[i].Points > scores[j].Points
		}
		return lastSolves[scores[i].TeamID].Before(lastSolves[scores[j].TeamID])
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}

	if scores == nil {
		scores = []TeamScore{}
	}
	c.JSON(http.StatusOK, scores)
}

// SolverInfo 解题者信息
type SolverInfo struct {
	Rank     int    `json:"rank"`
	TeamID   int64  `json:"teamId"`
	TeamName string `json:"teamName"`
	UserID   int64  `json:"userId"`
	SolvedAt string `json:"solvedAt"`
}

// HandleGetChallengeStats 获取题目解题统计（解题数、解题队伍列表、一血）
func HandleGetChallengeStats(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	var firstBloodID sql.NullInt64
	err := db.QueryRow(`SELECT first_blood_id FROM challenges WHERE id = $1`, challengeID).Scan(&firstBloodID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}

	rows, err := db.Query(`
		SELECT s.team_id, t.name, s.user_id, s.submitted_at
		FROM submissions s
		JOIN teams t ON s.team_id = t.id
		WHERE s.challenge_id = $1 AND s.correct = true
		ORDER BY s.submitted_at ASC`, challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	var solvers []SolverInfo
	rank := 1
	for rows.Next() {
		var s SolverInfo
		var solvedAt time.Time
		if err := rows.Scan(&s.TeamID, &s.TeamName, &s.UserID, &solvedAt); err != nil {
			continue
		}
		s.Rank = rank
		s.SolvedAt = solvedAt.Format("2006-01-02 15:04:05")
		solvers = append(solvers, s)
		rank++
	}

	if solvers == nil {
		solvers = []SolverInfo{}
	}
	resp := gin.H{"solveCount": len(solvers), "solvers": solvers}
	if firstBloodID.Valid {
		resp["firstBloodUserId"] = firstBloodID.Int64
	}
	c.JSON(http.StatusOK, resp)
}
