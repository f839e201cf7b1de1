// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown 错误提交冷却的redis实现。
// 未配置redis时协调器退回台账时间戳查询，行为一致但多一次查库。
type RedisCooldown struct {
	rdb *redis.Client
}

func NewRedisCooldown(rdb *redis.Client) *RedisCooldown {
	return &RedisCooldown{rdb: rdb}
}

func cooldownKey(teamID int64) string {
	return fmt.Sprintf("ctfcore:cooldown:team:%d", teamID)
}

// Remaining 剩余冷却时间，0表示可以提交
func (c *RedisCooldown) Remaining(ctx context.Context, teamID int64) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, cooldownKey(teamID)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// MarkWrong 记录一次错误提交，刷新冷却窗口
func (c *RedisCooldown) MarkWrong(ctx context.Context, teamID int64, window time.Duration) error {
	return c.rdb.Set(ctx, cooldownKey(teamID), "1", window).Err()
}
