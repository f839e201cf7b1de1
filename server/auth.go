// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ctfcore/server/logs"
)

// ensureAdmin 确保管理员账户存在（由环境变量完全控制）
func ensureAdmin(db *sql.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	displayName := os.Getenv("ADMIN_DISPLAY_NAME")

	if username == "" || password == "" {
		return nil
	}

	if displayName == "" {
		displayName = username
	}

	hash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if hashErr != nil {
		return hashErr
	}

	var existingID int64
	err := db.QueryRow(`SELECT id FROM users WHERE username = $1`, username).Scan(&existingID)

	if err == sql.ErrNoRows {
		var newID int64
		err = db.QueryRow(`INSERT INTO users (username, display_name, password_hash, is_staff, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, NOW(), NOW()) RETURNING id`,
			username, displayName, string(hash)).Scan(&newID)
		if err != nil {
			return err
		}
		log.Printf("[ensureAdmin] Created admin: %s (ID: %d)", username, newID)
	} else if err == nil {
		_, err = db.Exec(`UPDATE users SET display_name = $1, password_hash = $2, is_staff = TRUE, updated_at = NOW() WHERE id = $3`,
			displayName, string(hash), existingID)
		if err != nil {
			return err
		}
		log.Printf("[ensureAdmin] Updated admin: %s (ID: %d)", username, existingID)
	} else {
		return err
	}

	return nil
}

// handleLogin 处理登录请求
func handleLogin(c *gin.Context, db *sql.DB, secret []byte) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var (
		id           int64
		username     string
		displayName  string
		isStaff      bool
		isBot        bool
		passwordHash string
		tokenVersion int
	)

	err := db.QueryRow(
		`SELECT id, username, COALESCE(display_name, username), is_staff, is_bot, password_hash, COALESCE(token_version, 1) FROM users WHERE username = $1`,
		req.Username,
	).Scan(&id, &username, &displayName, &isStaff, &isBot, &passwordHash, &tokenVersion)

	clientIP := c.ClientIP()

	if err == sql.ErrNoRows {
		// 用户不存在，记录失败日志
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, nil, nil, nil, clientIP,
			"登录失败: 用户 ["+req.Username+"] 不存在", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}
	if err != nil {
		log.Printf("query user error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		// 密码错误，记录失败日志
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, &id, nil, nil, clientIP,
			"登录失败: 用户 ["+displayName+"] 密码错误", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}

	// 更新最后登录IP和时间
	db.Exec(`UPDATE users SET last_login_ip = $1, last_login_at = NOW(), updated_at = NOW() WHERE id = $2`, clientIP, id)

	// 记录登录日志
	logs.WriteLogSimple(db, logs.TypeLogin, logs.LevelSuccess, id, clientIP, displayName+" 登录系统")

	u := User{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		IsStaff:     isStaff,
		IsBot:       isBot,
	}
	token, err := generateJWT(u, secret, tokenVersion)
	if err != nil {
		log.Printf("generate token error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  u,
	})
}

// generateJWT 生成JWT令牌
func generateJWT(u User, secret []byte, tokenVersion int) (string, error) {
	claims := jwt.MapClaims{
		"sub":          u.ID,
		"username":     u.Username,
		"displayName":  u.DisplayName,
		"isStaff":      u.IsStaff,
		"tokenVersion": tokenVersion,
		"exp":          time.Now().Add(24 * time.Hour).Unix(),
		"iat":          time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
