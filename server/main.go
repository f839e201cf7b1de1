// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"ctfcore/server/admin"
	"ctfcore/server/config"
	"ctfcore/server/events"
	"ctfcore/server/flags"
	"ctfcore/server/logs"
	"ctfcore/server/question"
	"ctfcore/server/scoring"
	"ctfcore/server/submission"
	"ctfcore/server/user"
)

func main() {
	godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	if err := ensureAdmin(db); err != nil {
		log.Fatalf("failed to ensure admin user: %v", err)
	}

	settingsSvc := config.NewService(db)

	// 事件总线：提交事件落审计日志并实时推送
	hub := events.NewHub()
	hub.Subscribe(logs.NewRecorder(db))
	broadcaster := events.NewBroadcaster()
	hub.Subscribe(broadcaster.HandleEvent)

	// 提交协调器
	coordinator := &submission.Coordinator{
		Store:      submission.NewPgStore(db),
		Matchers:   flags.Lookup,
		Strategies: scoring.Lookup,
		Settings:   settingsSvc.Load,
		Events:     hub,
	}

	// redis可选，配置了就用redis做错误提交冷却
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unavailable, falling back to db cooldown: %v", err)
		} else {
			coordinator.Cooldown = submission.NewRedisCooldown(rdb)
		}
	}

	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/login", func(c *gin.Context) {
			handleLogin(c, db, []byte(jwtSecret))
		})

		// ========== 公开的排行榜API（无需认证）==========
		api.GET("/scoreboard", func(c *gin.Context) {
			submission.HandleGetScoreboard(c, db)
		})

		// 需要登录的用户API
		userAPI := api.Group("")
		userAPI.Use(userAuthMiddleware([]byte(jwtSecret), db))
		{
			// 题目列表（按队伍解锁状态过滤）
			userAPI.GET("/challenges", func(c *gin.Context) {
				question.HandleListChallenges(c, db)
			})

			// ========== Flag提交与解题 API ==========
			userAPI.POST("/challenges/:id/submit", func(c *gin.Context) {
				submission.HandleSubmitFlag(c, coordinator)
			})
			userAPI.POST("/challenges/:id/check", func(c *gin.Context) {
				submission.HandleCheckFlag(c, coordinator)
			})
			userAPI.GET("/challenges/:id/stats", func(c *gin.Context) {
				submission.HandleGetChallengeStats(c, db)
			})

			// 排行榜实时推送
			userAPI.GET("/scoreboard/ws", broadcaster.HandleWS)

			// ========== 用户个人中心 API ==========
			userAPI.GET("/profile", func(c *gin.Context) {
				user.HandleGetProfile(c, db)
			})
			userAPI.POST("/profile/password", func(c *gin.Context) {
				user.HandleChangePassword(c, db)
			})
			userAPI.GET("/profile/team", func(c *gin.Context) {
				user.HandleGetMyTeam(c, db)
			})
		}

		// 管理员后台API
		adminAPI := api.Group("/admin")
		adminAPI.Use(authMiddleware([]byte(jwtSecret)))
		{
			adminAPI.GET("/overview", func(c *gin.Context) {
				admin.HandleAdminOverview(c, db)
			})

			// 比赛设置
			adminAPI.GET("/settings", func(c *gin.Context) {
				admin.HandleGetSettings(c, settingsSvc)
			})
			adminAPI.PUT("/settings", func(c *gin.Context) {
				admin.HandleUpdateSettings(c, db, settingsSvc)
			})

			// 题目管理 CRUD
			adminAPI.GET("/challenges", func(c *gin.Context) {
				question.HandleListChallengesAdmin(c, db)
			})
			adminAPI.POST("/challenges", func(c *gin.Context) {
				question.HandleCreateChallenge(c, db)
			})
			adminAPI.PUT("/challenges/:id", func(c *gin.Context) {
				question.HandleUpdateChallenge(c, db)
			})
			adminAPI.DELETE("/challenges/:id", func(c *gin.Context) {
				question.HandleDeleteChallenge(c, db)
			})
			adminAPI.GET("/plugin-types", question.HandlePluginTypes)

			// 分数重算与台账导出
			adminAPI.POST("/recalculate", func(c *gin.Context) {
				admin.HandleRecalculateScores(c, db, scoring.Lookup)
			})
			adminAPI.GET("/submissions/export", func(c *gin.Context) {
				admin.HandleExportSubmissions(c, db)
			})

			// 审计日志
			adminAPI.GET("/logs", func(c *gin.Context) {
				logs.HandleGetLogs(c, db)
			})
			adminAPI.GET("/logs/ws", logs.HandleLogsWebSocket)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("server listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
