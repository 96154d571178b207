package transport

import (
	"time"
)

// Conn couples one Socket with its outbound queue.
type Conn struct {
	id     string
	socket Socket
	out    <-chan []byte
}

// ReadPump feeds every inbound message to handle until the socket fails.
func (c *Conn) ReadPump(handle func(connID string, data []byte)) {
	for {
		data, err := c.socket.Read()
		if err != nil {
			return
		}
		handle(c.id, data)
	}
}

// WritePump drains the outbound queue and pings on every tick. It closes the
// socket when the queue is closed or a write fails, which also ends ReadPump.
func (c *Conn) WritePump(ping <-chan time.Time) {
	reason := "closed"
	defer func() { c.socket.Close(reason) }()
	for {
		select {
		case data, ok := <-c.out:
			if !ok {
				reason = "connection dropped"
				return
			}
			if err := c.socket.Write(data); err != nil {
				return
			}
		case <-ping:
			if err := c.socket.Ping(); err != nil {
				return
			}
		}
	}
}
