// Package sockets wraps fiber websocket connections behind a small
// interface so handlers can push JSON concurrently without racing on the
// underlying connection.
package sockets

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

type SocketID string

type Socket interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	Close() error
}

type socketImpl struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func NewSocket(ws *websocket.Conn) Socket {
	return &socketImpl{ws: ws}
}

// WriteJSON serializes writes; the push timer and the handler loop both
// send on the same connection.
func (s *socketImpl) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteJSON(v)
}

func (s *socketImpl) ReadJSON(v interface{}) error {
	return s.ws.ReadJSON(v)
}

func (s *socketImpl) Close() error {
	return s.ws.Close()
}
