package network

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/annel0/tile-arena/internal/logging"
)

// TCPServer принимает TCP-соединения клиентов
type TCPServer struct {
	listener net.Listener
	handler  *GameHandler
	codec    *Codec

	connections map[uint64]*playerConn
	nextConnID  uint64
	mu          sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTCPServer создаёт TCP-сервер на указанном адресе
func NewTCPServer(address string, handler *GameHandler) (*TCPServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	codec, err := NewCodec()
	if err != nil {
		listener.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		listener:    listener,
		handler:     handler,
		codec:       codec,
		connections: make(map[uint64]*playerConn),
		nextConnID:  1,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start запускает приём соединений
func (s *TCPServer) Start() {
	logging.Info("TCP сервер слушает %s", s.listener.Addr())
	s.wg.Add(2)
	go s.acceptLoop()
	go s.healthCheckLoop()
}

// Stop останавливает сервер и закрывает все соединения
func (s *TCPServer) Stop() {
	s.cancel()
	s.listener.Close()

	s.mu.Lock()
	for _, pc := range s.connections {
		pc.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				logging.Warn("Ошибка принятия TCP соединения: %v", err)
				continue
			}
		}

		s.mu.Lock()
		connID := s.nextConnID
		s.nextConnID++
		pc := newPlayerConn(connID, "tcp", conn, s.codec, s.handler)
		s.connections[connID] = pc
		s.mu.Unlock()

		metricConnectionsTotal.WithLabelValues("tcp").Inc()
		metricActiveConnections.WithLabelValues("tcp").Inc()

		go func() {
			pc.serve(s.ctx)

			s.mu.Lock()
			delete(s.connections, pc.id)
			s.mu.Unlock()
			metricActiveConnections.WithLabelValues("tcp").Dec()
		}()
	}
}

// healthCheckLoop отключает соединения без активности более 2 минут
func (s *TCPServer) healthCheckLoop() {
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
					logging.Info("TCP соединение %d отключено из-за таймаута", id)
					pc.Close()
				}
			}
			s.mu.Unlock()
		}
	}
}

// Addr возвращает фактический адрес прослушивания
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}
