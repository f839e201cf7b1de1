// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package events

import (
	"log"
	"sync"
	"time"
)

// 事件类型常量
const (
	TypeFlagSubmit = "flag_submit" // 收到一次提交
	TypeFlagReject = "flag_reject" // 提交被拒绝（错误flag、次数超限等）
	TypeFlagScore  = "flag_score"  // 正确提交并计分
)

// Event 提交/计分事件。在计分事务提交之后派发，
// 订阅者失败不会影响已落库的计分结果。
type Event struct {
	Type        string    `json:"type"`
	UserID      int64     `json:"userId"`
	TeamID      int64     `json:"teamId"`
	ChallengeID int64     `json:"challengeId"`
	Flag        string    `json:"flag,omitempty"`
	Points      int       `json:"points,omitempty"`
	FirstBlood  bool      `json:"firstBlood,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Hub 进程内事件总线
type Hub struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe 注册订阅者，只在启动阶段调用
func (h *Hub) Subscribe(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

// Publish 同步派发事件。订阅者panic只记录日志，不向调用方传播。
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("event subscriber panic: %v", r)
				}
			}()
			fn(ev)
		}()
	}
}
