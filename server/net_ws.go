package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"flaparena/game"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4 << 10 // 入站只有小的控制消息
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
// Enqueue 与 Close 只在会话的 Tick 线程调用
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
	}
}

// Close 关闭发送队列，写协程随之退出并关闭底层连接
func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
// send 在启动协程前取出，之后 Close 置空字段不会与本协程竞争
func (c *ClientConn) writePump(send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，转交会话在 Tick 线程中处理
func (c *ClientConn) readPump(s *Session) {
	// 读泵退出时，通知会话在 Tick 线程中移除该连接
	defer s.RequestLeave(c)
	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugw("websocket read error", "err", err)
			}
			return
		}
		var im InputMessage
		if err := json.Unmarshal(payload, &im); err != nil {
			s.metrics.IncRejected()
			continue
		}
		im.Type = strings.ToLower(im.Type)
		s.OnInput(c, im)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// parseKinds 解析 ?events=player_killed,round_ended
func parseKinds(raw string) ([]game.EventKind, bool) {
	if raw == "" {
		return nil, true
	}
	var kinds []game.EventKind
	for _, name := range strings.Split(raw, ",") {
		k, ok := game.ParseEventKind(strings.TrimSpace(name))
		if !ok {
			return nil, false
		}
		kinds = append(kinds, k)
	}
	return kinds, true
}

// serveWS WebSocket 接入：/ws?session=<id>&events=<kinds>
func (h *api) serveWS(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	kinds, ok := parseKinds(c.Query("events"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event kind", "events": c.Query("events")})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Log.Warnw("websocket upgrade failed", "err", err)
		return
	}

	client := NewClientConn(ws)
	go client.writePump(client.send)
	if err := s.Join(client, kinds...); err != nil {
		client.Close()
		return
	}
	go client.readPump(s)
}
