// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OverviewStats 概览统计
type OverviewStats struct {
	Users       int `json:"users"`
	Teams       int `json:"teams"`
	Challenges  int `json:"challenges"`
	Submissions int `json:"submissions"`
	Solves      int `json:"solves"`
}

// HandleAdminOverview 后台概览统计
func HandleAdminOverview(c *gin.Context, db *sql.DB) {
	var stats OverviewStats

	// 查询用户数
	db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&stats.Users)

	// 查询队伍数
	db.QueryRow(`SELECT COUNT(*) FROM teams`).Scan(&stats.Teams)

	// 查询题目数
	db.QueryRow(`SELECT COUNT(*) FROM challenges`).Scan(&stats.Challenges)

	// 查询提交总数与正确数
	db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&stats.Submissions)
	db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE correct = TRUE`).Scan(&stats.Solves)

	c.JSON(http.StatusOK, stats)
}
