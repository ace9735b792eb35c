package network

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/xtaci/kcp-go/v5"
)

// Client — минимальный синхронный клиент протокола арены.
// Используется интеграционными тестами и отладочными инструментами;
// игровые клиенты держат собственные реализации.
type Client struct {
	conn  net.Conn
	codec *Codec
	seq   uint32
}

// DialTCP подключается к серверу по TCP
func DialTCP(address string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return newClient(conn)
}

// DialKCP подключается к серверу по KCP
func DialKCP(address string) (*Client, error) {
	sess, err := kcp.DialWithOptions(address, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	sess.SetNoDelay(1, 10, 2, 1)
	return newClient(sess)
}

func newClient(conn net.Conn) (*Client, error) {
	codec, err := NewCodec()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, codec: codec}, nil
}

// Send отправляет сообщение без ожидания ответа
func (c *Client) Send(t MessageType, payload interface{}) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	msg.Seq = atomic.AddUint32(&c.seq, 1)
	return c.codec.WriteMessage(c.conn, msg)
}

// Request отправляет сообщение и ждёт ответ с тем же Seq.
// Уведомления, пришедшие раньше ответа, пропускаются.
func (c *Client) Request(payload interface{}, t MessageType, timeout time.Duration) (*Message, error) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return nil, err
	}
	msg.Seq = atomic.AddUint32(&c.seq, 1)

	if err := c.codec.WriteMessage(c.conn, msg); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		resp, err := c.codec.ReadMessage(c.conn)
		if err != nil {
			return nil, fmt.Errorf("ожидание ответа: %w", err)
		}
		if resp.Seq == msg.Seq {
			return resp, nil
		}
	}
}

// ReadNotify читает следующее входящее сообщение
func (c *Client) ReadNotify(timeout time.Duration) (*Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})
	return c.codec.ReadMessage(c.conn)
}

// Close закрывает соединение
func (c *Client) Close() error {
	return c.conn.Close()
}
