package transport

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait       = time.Minute
	pingPeriod     = 25 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// Socket is one client's message stream. Only the write pump calls Write,
// Ping and Close.
type Socket interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	Close(reason string)
}

type websocketConnection struct {
	socket *websocket.Conn
}

func newWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &websocketConnection{socket: conn}
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Write(data []byte) error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	return wc.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (wc *websocketConnection) Close(reason string) {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	wc.socket.Close()
}
