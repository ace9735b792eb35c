package network

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/tile-arena/internal/logging"
)

// KCPServer принимает KCP-сессии (надёжный UDP) для клиентов,
// чувствительных к задержке. Протокол поверх сессии тот же, что у TCP.
type KCPServer struct {
	listener *kcp.Listener
	handler  *GameHandler
	codec    *Codec

	connections map[uint64]*playerConn
	nextConnID  uint64
	mu          sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKCPServer создаёт KCP-сервер на указанном адресе
func NewKCPServer(address string, handler *GameHandler) (*KCPServer, error) {
	listener, err := kcp.ListenWithOptions(address, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	codec, err := NewCodec()
	if err != nil {
		listener.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KCPServer{
		listener:    listener,
		handler:     handler,
		codec:       codec,
		connections: make(map[uint64]*playerConn),
		nextConnID:  1,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start запускает приём сессий
func (s *KCPServer) Start() {
	logging.Info("KCP сервер слушает %s", s.listener.Addr())
	s.wg.Add(2)
	go s.acceptLoop()
	go s.healthCheckLoop()
}

// Stop останавливает сервер и закрывает все сессии
func (s *KCPServer) Stop() {
	s.cancel()
	s.listener.Close()

	s.mu.Lock()
	for _, pc := range s.connections {
		pc.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *KCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		sess, err := s.listener.AcceptKCP()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				logging.Warn("Ошибка принятия KCP сессии: %v", err)
				continue
			}
		}

		// Режим с низкой задержкой: быстрый ретрансмит, без Nagle
		sess.SetNoDelay(1, 10, 2, 1)
		sess.SetWindowSize(128, 128)

		s.mu.Lock()
		connID := s.nextConnID
		s.nextConnID++
		pc := newPlayerConn(connID, "kcp", sess, s.codec, s.handler)
		s.connections[connID] = pc
		s.mu.Unlock()

		metricConnectionsTotal.WithLabelValues("kcp").Inc()
		metricActiveConnections.WithLabelValues("kcp").Inc()

		go func() {
			pc.serve(s.ctx)

			s.mu.Lock()
			delete(s.connections, pc.id)
			s.mu.Unlock()
			metricActiveConnections.WithLabelValues("kcp").Dec()
		}()
	}
}

// healthCheckLoop отключает сессии без активности более 2 минут
func (s *KCPServer) healthCheckLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, pc := range s.connections {
				if pc.idleSince() > 2*time.Minute {
					logging.Info("KCP сессия %d отключена из-за таймаута", id)
					pc.Close()
				}
			}
			s.mu.Unlock()
		}
	}
}

// Addr возвращает фактический адрес прослушивания
func (s *KCPServer) Addr() net.Addr {
	return s.listener.Addr()
}
