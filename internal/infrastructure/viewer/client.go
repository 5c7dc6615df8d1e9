package viewer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 5 * time.Second
	sendBacklog = 4
)

// inMessage сообщение от браузера
type inMessage struct {
	Type string `json:"type"`
	Key  int    `json:"key,omitempty"`
	Pos  int    `json:"pos,omitempty"`
}

// seekbarMessage состояние ползунка для браузера
type seekbarMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Pos  int    `json:"pos"`
	Max  int    `json:"max"`
}

type outMessage struct {
	kind int
	data []byte
}

// client одно подключение браузера. Писать в conn может только writeLoop,
// читать только readLoop.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan outMessage
	window *Window
}

func newClient(conn *websocket.Conn, w *Window) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan outMessage, sendBacklog),
		window: w,
	}
}

// enqueue не блокирует цикл захвата: медленный клиент теряет кадры
func (c *client) enqueue(m outMessage) bool {
	select {
	case c.send <- m:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for m := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
			c.window.logger.Debug("Клиент %s: ошибка отправки: %v", c.id, err)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}

func (c *client) readLoop() {
	defer c.window.unregister(c)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.window.logger.Error("Клиент %s: ошибка чтения: %v", c.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.window.logger.Debug("Клиент %s: некорректное сообщение %q", c.id, data)
			continue
		}
		c.window.dispatch(msg)
	}
}
