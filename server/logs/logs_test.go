// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package logs

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 多个提交同时触发广播时，每个客户端要完整收到全部日志，
// 不能因为同一连接被并发写而断开
func TestBroadcastLogConcurrent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", HandleLogsWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	const clientCount = 2
	conns := make([]*websocket.Conn, 0, clientCount)
	for i := 0; i < clientCount; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns = append(conns, conn)
	}

	// 等服务端完成连接登记
	require.Eventually(t, func() bool {
		clientsMu.Lock()
		defer clientsMu.Unlock()
		return len(clients) == clientCount
	}, 2*time.Second, 10*time.Millisecond)

	const writers = 4
	const perWriter = 25

	// 先起读协程再广播，写满内核缓冲也不会卡住
	readErrs := make(chan error, clientCount)
	for _, conn := range conns {
		go func(conn *websocket.Conn) {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			for i := 0; i < writers*perWriter; i++ {
				_, data, err := conn.ReadMessage()
				if err != nil {
					readErrs <- err
					return
				}
				var entry LogEntry
				if err := json.Unmarshal(data, &entry); err != nil {
					readErrs <- err
					return
				}
				assert.Equal(t, TypeFlagSubmit, entry.Type)
			}
			readErrs <- nil
		}(conn)
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				broadcastLog(LogEntry{
					Type:    TypeFlagSubmit,
					Level:   LevelInfo,
					Message: fmt.Sprintf("writer %d message %d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < clientCount; i++ {
		require.NoError(t, <-readErrs)
	}
}
