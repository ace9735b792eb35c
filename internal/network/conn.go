package network

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/tile-arena/internal/logging"
)

// playerConn — соединение клиента поверх произвольного net.Conn.
// Используется и TCP-, и KCP-сервером: оба транспорта дают потоковый
// интерфейс, поверх которого работает общий кодек фреймов.
type playerConn struct {
	id        uint64
	transport string
	conn      net.Conn
	codec     *Codec
	handler   *GameHandler

	playerID uint64 // atomic
	lastPing int64  // atomic, unix-наносекунды

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newPlayerConn(id uint64, transport string, conn net.Conn, codec *Codec, handler *GameHandler) *playerConn {
	pc := &playerConn{
		id:        id,
		transport: transport,
		conn:      conn,
		codec:     codec,
		handler:   handler,
	}
	pc.touch()
	return pc
}

func (pc *playerConn) ID() uint64        { return pc.id }
func (pc *playerConn) Transport() string { return pc.transport }

func (pc *playerConn) PlayerID() uint64 {
	return atomic.LoadUint64(&pc.playerID)
}

func (pc *playerConn) SetPlayerID(id uint64) {
	atomic.StoreUint64(&pc.playerID, id)
}

// Send пишет сообщение в соединение; безопасен для вызова из
// нескольких горутин
func (pc *playerConn) Send(msg *Message) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	return pc.codec.WriteMessage(pc.conn, msg)
}

func (pc *playerConn) Close() error {
	var err error
	pc.closeOnce.Do(func() {
		err = pc.conn.Close()
	})
	return err
}

func (pc *playerConn) touch() {
	atomic.StoreInt64(&pc.lastPing, time.Now().UnixNano())
}

func (pc *playerConn) idleSince() time.Duration {
	return time.Since(time.Unix(0, atomic.LoadInt64(&pc.lastPing)))
}

// serve читает сообщения до закрытия соединения или отмены контекста
func (pc *playerConn) serve(ctx context.Context) {
	pc.handler.OnConnect(pc)
	defer func() {
		pc.handler.OnDisconnect(pc)
		pc.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := pc.codec.ReadMessage(pc.conn)
		if err != nil {
			if err != io.EOF {
				logging.Debug("Сессия %d: ошибка чтения: %v", pc.id, err)
			}
			return
		}
		pc.touch()

		if err := pc.handler.HandleMessage(pc, msg); err != nil {
			metricHandlerErrors.Inc()
			logging.Warn("Сессия %d: %v", pc.id, err)
			notify, nerr := NewMessage(MsgError, &ErrorNotify{Message: err.Error()})
			if nerr == nil {
				notify.Seq = msg.Seq
				_ = pc.Send(notify)
			}
		}
	}
}
