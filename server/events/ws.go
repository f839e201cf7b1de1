// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Broadcaster 计分事件实时推送（记分板大屏使用）
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	upgrader websocket.Upgrader
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS WebSocket 连接处理
func (b *Broadcaster) HandleWS(c *gin.Context) {
	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.clients[conn] = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
	}()

	// 保持连接，等待客户端断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// HandleEvent 订阅事件总线：计分事件广播给所有连接（不含flag原文）
func (b *Broadcaster) HandleEvent(ev Event) {
	if ev.Type != TypeFlagScore {
		return
	}
	ev.Flag = ""
	go b.broadcast(ev)
}

func (b *Broadcaster) broadcast(ev Event) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			conn.Close()
			delete(b.clients, conn)
		}
	}
}
