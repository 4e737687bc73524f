package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type subscriber struct {
	conn       *websocket.Conn
	mu         sync.Mutex
	lastCmdSeq atomic.Uint64
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{conn: conn}
}

// WriteMessage serializes writes on the connection and applies the shared
// write deadline.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) LastCommandSeq() uint64 {
	return s.lastCmdSeq.Load()
}

func (s *subscriber) StoreLastCommandSeq(seq uint64) {
	s.lastCmdSeq.Store(seq)
}

func (s *subscriber) Close() error {
	return s.conn.Close()
}
