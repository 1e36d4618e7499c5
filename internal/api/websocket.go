// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/storage"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 更新推送只含数据目录变更事件，放开跨域
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// UpdateHub 向后台管理页面推送数据目录变更事件
// 事件来自存储层的文件监听（外部脚本或手工编辑也会触发），
// 管理端据此刷新列表，无需轮询
type UpdateHub struct {
	clients    map[*updateClient]bool
	register   chan *updateClient
	unregister chan *updateClient
	broadcast  chan []byte
	mutex      sync.RWMutex
	logger     *zap.Logger
}

type updateClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewUpdateHub 创建推送中心并启动分发循环
func NewUpdateHub(logger *zap.Logger) *UpdateHub {
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := &UpdateHub{
		clients:    make(map[*updateClient]bool),
		register:   make(chan *updateClient, 16),
		unregister: make(chan *updateClient, 16),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}

	go hub.run()
	return hub
}

func (hub *UpdateHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.mutex.Lock()
			hub.clients[client] = true
			hub.mutex.Unlock()
		case client := <-hub.unregister:
			hub.mutex.Lock()
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.send)
			}
			hub.mutex.Unlock()
		case message := <-hub.broadcast:
			hub.mutex.RLock()
			for client := range hub.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲已满的客户端视为失活，由读循环负责回收
				}
			}
			hub.mutex.RUnlock()
		}
	}
}

// Broadcast 推送一条变更事件到所有连接
func (hub *UpdateHub) Broadcast(event storage.ChangeEvent) {
	payload, err := json.Marshal(gin.H{
		"type":      "store_changed",
		"path":      event.Path,
		"op":        event.Op,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	select {
	case hub.broadcast <- payload:
	default:
		hub.logger.Debug("推送缓冲已满，丢弃变更事件")
	}
}

// ClientCount 当前连接数（调试用）
func (hub *UpdateHub) ClientCount() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.clients)
}

// HandleUpdates 升级连接并加入推送中心
func (hub *UpdateHub) HandleUpdates(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}

	client := &updateClient{
		conn: conn,
		send: make(chan []byte, 64),
	}
	hub.register <- client

	go hub.writeLoop(client)
	go hub.readLoop(client)
}

// readLoop 只消费控制帧，连接断开时负责注销
func (hub *UpdateHub) readLoop(client *updateClient) {
	defer func() {
		hub.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (hub *UpdateHub) writeLoop(client *updateClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
