// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package user

import (
	"database/sql"
	"net/http"
	"regexp"
	"time"

	"ctfcore/server/logs"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// ProfileInfo 用户个人信息
type ProfileInfo struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	TeamID      *int64  `json:"teamId"`
	TeamName    *string `json:"teamName"`
	Points      int     `json:"points"`
	Solves      int     `json:"solves"`
	IsStaff     bool    `json:"isStaff"`
	CreatedAt   string  `json:"createdAt"`
}

// TeamInfo 队伍信息
type TeamInfo struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Points    int          `json:"points"`
	CaptainID *int64       `json:"captainId"`
	IsCaptain bool         `json:"isCaptain"` // 当前用户是否为队长
	Members   []TeamMember `json:"members"`
	Solves    []TeamSolve  `json:"solves"`
}

// TeamMember 队伍成员
type TeamMember struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Points      int    `json:"points"`
	IsCaptain   bool   `json:"isCaptain"`
}

// TeamSolve 队伍解题记录
type TeamSolve struct {
	ChallengeID    int64  `json:"challengeId"`
	ChallengeTitle string `json:"challengeTitle"`
	SolvedBy       string `json:"solvedBy"`
	Points         int    `json:"points"`
	SolvedAt       string `json:"solvedAt"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ValidatePasswordStrength 验证密码强度：必须包含大小写字母、数字、特殊符号
func ValidatePasswordStrength(password string) (bool, string) {
	if len(password) < 8 {
		return false, "密码长度至少8位"
	}
	// 大写字母
	hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
	if !hasUpper {
		return false, "密码必须包含大写字母"
	}
	// 小写字母
	hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
	if !hasLower {
		return false, "密码必须包含小写字母"
	}
	// 数字
	hasDigit := regexp.MustCompile(`[0-9]`).MatchString(password)
	if !hasDigit {
		return false, "密码必须包含数字"
	}
	// 特殊符号
	hasSpecial := regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?~]`).MatchString(password)
	if !hasSpecial {
		return false, "密码必须包含特殊符号(!@#$%^&*等)"
	}
	return true, ""
}

// HandleGetProfile 获取当前用户个人信息
func HandleGetProfile(c *gin.Context, db *sql.DB) {
	userID := c.GetInt64("userID")

	var p ProfileInfo
	var teamName sql.NullString
	var teamID sql.NullInt64
	var createdAt time.Time

	err := db.QueryRow(`
		SELECT u.id, u.username, COALESCE(u.display_name, u.username), u.team_id, t.name,
		       u.points, u.is_staff, u.created_at
		FROM users u
		LEFT JOIN teams t ON u.team_id = t.id
		WHERE u.id = $1`, userID).Scan(
		&p.ID, &p.Username, &p.DisplayName, &teamID, &teamName, &p.Points, &p.IsStaff, &createdAt)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND"})
		return
	}

	if teamID.Valid {
		p.TeamID = &teamID.Int64
	}
	if teamName.Valid {
		p.TeamName = &teamName.String
	}
	p.CreatedAt = createdAt.Format("2006-01-02 15:04")

	db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND correct = TRUE`, userID).Scan(&p.Solves)

	c.JSON(http.StatusOK, p)
}

// HandleGetMyTeam 获取当前用户队伍信息（成员与解题记录）
func HandleGetMyTeam(c *gin.Context, db *sql.DB) {
	userID := c.GetInt64("userID")

	var teamID sql.NullInt64
	if err := db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID); err != nil || !teamID.Valid {
		c.JSON(http.StatusNotFound, gin.H{"error": "NO_TEAM"})
		return
	}

	var info TeamInfo
	var captainID sql.NullInt64
	err := db.QueryRow(`SELECT id, name, points, captain_id FROM teams WHERE id = $1`, teamID.Int64).Scan(
		&info.ID, &info.Name, &info.Points, &captainID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND"})
		return
	}
	if captainID.Valid {
		info.CaptainID = &captainID.Int64
		info.IsCaptain = captainID.Int64 == userID
	}

	// 成员列表
	memberRows, err := db.Query(`
		SELECT id, username, COALESCE(display_name, username), points
		FROM users WHERE team_id = $1 ORDER BY id`, info.ID)
	if err == nil {
		defer memberRows.Close()
		for memberRows.Next() {
			var m TeamMember
			if err := memberRows.Scan(&m.ID, &m.Username, &m.DisplayName, &m.Points); err != nil {
				continue
			}
			m.IsCaptain = info.CaptainID != nil && *info.CaptainID == m.ID
			info.Members = append(info.Members, m)
		}
	}
	if info.Members == nil {
		info.Members = []TeamMember{}
	}

	// 解题记录
	solveRows, err := db.Query(`
		SELECT s.challenge_id, c.title, COALESCE(u.display_name, u.username), s.points, s.submitted_at
		FROM submissions s
		JOIN challenges c ON s.challenge_id = c.id
		JOIN users u ON s.user_id = u.id
		WHERE s.team_id = $1 AND s.correct = TRUE
		ORDER BY s.submitted_at`, info.ID)
	if err == nil {
		defer solveRows.Close()
		for solveRows.Next() {
			var s TeamSolve
			var solvedAt time.Time
			if err := solveRows.Scan(&s.ChallengeID, &s.ChallengeTitle, &s.SolvedBy, &s.Points, &solvedAt); err != nil {
				continue
			}
			s.SolvedAt = solvedAt.Format("2006-01-02 15:04:05")
			info.Solves = append(info.Solves, s)
		}
	}
	if info.Solves == nil {
		info.Solves = []TeamSolve{}
	}

	c.JSON(http.StatusOK, info)
}

// HandleChangePassword 修改密码
func HandleChangePassword(c *gin.Context, db *sql.DB) {
	userID := c.GetInt64("userID")

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	if ok, msg := ValidatePasswordStrength(req.NewPassword); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "WEAK_PASSWORD", "message": msg})
		return
	}

	var passwordHash string
	if err := db.QueryRow(`SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&passwordHash); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "WRONG_PASSWORD"})
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "HASH_ERROR"})
		return
	}

	// 改密后递增 token_version，旧 token 全部失效，需要重新登录
	if _, err := db.Exec(`UPDATE users SET password_hash = $1, token_version = COALESCE(token_version, 1) + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		string(newHash), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	logs.WriteLogSimple(db, logs.TypePasswordChange, logs.LevelInfo, userID, c.ClientIP(), "修改密码")

	c.JSON(http.StatusOK, gin.H{"message": "密码已修改，请重新登录"})
}
