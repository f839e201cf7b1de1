// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// HandleExportSubmissions 导出提交台账（Excel）
func HandleExportSubmissions(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT s.id, c.title, t.name, COALESCE(u.display_name, u.username), s.flag,
		       s.correct, s.points, s.ip_address, s.submitted_at
		FROM submissions s
		JOIN challenges c ON s.challenge_id = c.id
		JOIN teams t ON s.team_id = t.id
		JOIN users u ON s.user_id = u.id
		ORDER BY s.submitted_at, s.id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	defer rows.Close()

	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"ID", "题目", "队伍", "提交者", "Flag内容", "是否正确", "得分", "IP地址", "提交时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, h)
	}

	rowIdx := 2
	for rows.Next() {
		var id int64
		var title, teamName, userName, flag, ipAddress string
		var correct bool
		var points int
		var submittedAt time.Time
		if err := rows.Scan(&id, &title, &teamName, &userName, &flag, &correct, &points, &ipAddress, &submittedAt); err != nil {
			continue
		}

		correctText := "否"
		if correct {
			correctText = "是"
		}
		values := []interface{}{id, title, teamName, userName, flag, correctText, points, ipAddress,
			submittedAt.Format("2006-01-02 15:04:05")}
		for j, val := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, rowIdx)
			f.SetCellValue("Sheet1", cell, val)
		}
		rowIdx++
	}

	f.SetColWidth("Sheet1", "B", "B", 25)
	f.SetColWidth("Sheet1", "C", "D", 18)
	f.SetColWidth("Sheet1", "E", "E", 40)
	f.SetColWidth("Sheet1", "H", "I", 20)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=submissions_"+time.Now().Format("20060102_150405")+".xlsx")

	if err := f.Write(c.Writer); err != nil {
		log.Printf("write excel error: %v", err)
	}
}
