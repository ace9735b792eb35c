package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/tile-arena/internal/auth"
	"github.com/annel0/tile-arena/internal/combat"
	"github.com/annel0/tile-arena/internal/logging"
	"github.com/annel0/tile-arena/internal/storage"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
)

// Session — соединение клиента с точки зрения игровой логики.
// Реализуется playerConn; в тестах подменяется фейком.
type Session interface {
	ID() uint64
	Transport() string
	PlayerID() uint64
	SetPlayerID(id uint64)
	Send(msg *Message) error
	Close() error
}

// Точка появления новых игроков
var spawnPos = vec.Vec3Float{X: 0.5, Y: 0.5}

// Серверные границы параметров атаки. Геометрия приходит от клиента,
// а объём broadphase-запроса растёт кубически от радиуса и дальности,
// поэтому значения за пределами режутся до границ.
const (
	maxAttackRange       = 16.0
	maxAttackRadius      = 4.0
	maxAttackSamples     = 32
	defaultAttackSamples = 5
)

// GameHandler применяет сообщения клиентов к миру и боевой системе.
// Один обработчик обслуживает все транспорты (TCP и KCP).
//
// Реализует world.WorldObserver: изменения тайлов рассылаются всем
// авторизованным сессиям.
type GameHandler struct {
	world     *world.SparseChunkWorld
	combat    *combat.CombatSystem
	auth      *auth.Authenticator
	positions storage.PositionRepo

	sessions map[uint64]Session // ключ — ID соединения
	mu       sync.RWMutex

	attackSamples int // Число сэмплов атаки, когда клиент его не указал
}

// NewGameHandler создаёт обработчик и подписывает его на события мира
func NewGameHandler(w *world.SparseChunkWorld, cs *combat.CombatSystem, a *auth.Authenticator, positions storage.PositionRepo) *GameHandler {
	gh := &GameHandler{
		world:         w,
		combat:        cs,
		auth:          a,
		positions:     positions,
		sessions:      make(map[uint64]Session),
		attackSamples: defaultAttackSamples,
	}
	w.Subscribe(gh)
	return gh
}

// SetAttackSamples задаёт число сэмплов атаки по умолчанию.
// Вызывается при сборке сервера, до приёма соединений.
func (gh *GameHandler) SetAttackSamples(n int) {
	if n > 0 && n <= maxAttackSamples {
		gh.attackSamples = n
	}
}

// OnConnect регистрирует новую сессию
func (gh *GameHandler) OnConnect(s Session) {
	gh.mu.Lock()
	gh.sessions[s.ID()] = s
	gh.mu.Unlock()
	logging.Debug("Сессия %d (%s) подключена", s.ID(), s.Transport())
}

// OnDisconnect снимает сессию с учёта и сохраняет позицию игрока
func (gh *GameHandler) OnDisconnect(s Session) {
	gh.mu.Lock()
	delete(gh.sessions, s.ID())
	gh.mu.Unlock()

	playerID := s.PlayerID()
	if playerID == 0 {
		return
	}

	if f, ok := gh.combat.Fighter(playerID); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := gh.positions.Save(ctx, f.UserID, f.Pos); err != nil {
			logging.Error("Не удалось сохранить позицию игрока %d: %v", playerID, err)
		}
	}
	gh.combat.RemoveFighter(playerID)
	logging.Info("Игрок %d отключился", playerID)
}

// HandleMessage обрабатывает одно входящее сообщение сессии
func (gh *GameHandler) HandleMessage(s Session, msg *Message) error {
	metricMessagesTotal.WithLabelValues("in").Inc()

	switch msg.Type {
	case MsgAuth:
		return gh.handleAuth(s, msg)
	case MsgPing:
		return gh.reply(s, msg.Seq, MsgPong, nil)
	case MsgChunkRequest:
		return gh.handleChunkRequest(s, msg)
	case MsgTileSet:
		return gh.handleTileSet(s, msg)
	case MsgMove:
		return gh.handleMove(s, msg)
	case MsgAttack:
		return gh.handleAttack(s, msg)
	default:
		return fmt.Errorf("неизвестный тип сообщения %d", msg.Type)
	}
}

func (gh *GameHandler) handleAuth(s Session, msg *Message) error {
	var req AuthRequest
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}

	var res *auth.AuthResult
	var err error
	switch {
	case req.Token != "":
		res, err = gh.auth.LoginWithToken(req.Token)
	case req.Register:
		res, err = gh.auth.Register(req.Username, req.Password)
	default:
		res, err = gh.auth.Login(req.Username, req.Password)
	}
	if err != nil {
		return gh.reply(s, msg.Seq, MsgAuthResponse, &AuthResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	pos := spawnPos
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if saved, found, err := gh.positions.Load(ctx, res.User.ID); err == nil && found {
		pos = saved
	}

	s.SetPlayerID(res.User.ID)
	gh.combat.AddFighter(combat.NewFighter(res.User.ID, res.User.ID, pos))

	return gh.reply(s, msg.Seq, MsgAuthResponse, &AuthResponse{
		Success:  true,
		PlayerID: res.User.ID,
		Token:    res.Token,
		Pos:      pos,
	})
}

func (gh *GameHandler) handleChunkRequest(s Session, msg *Message) error {
	if s.PlayerID() == 0 {
		return fmt.Errorf("запрос чанка без авторизации")
	}

	var req ChunkRequest
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}

	size := gh.world.ChunkSize()
	data := &ChunkData{Coord: req.Coord, Size: size}

	if !gh.world.HasChunk(req.Coord) {
		data.Uniform = true
		data.Fill = uint16(gh.world.DefaultTileID())
		return gh.reply(s, msg.Seq, MsgChunkData, data)
	}

	origin := world.ChunkOrigin(req.Coord, size)
	tiles := make([]uint16, size*size)
	uniform := true
	first := gh.world.GetTile(origin)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			tile := gh.world.GetTile(vec.Vec2{X: origin.X + x, Y: origin.Y + y})
			tiles[y*size+x] = uint16(tile)
			if tile != first {
				uniform = false
			}
		}
	}

	if uniform {
		data.Uniform = true
		data.Fill = uint16(first)
	} else {
		data.Tiles = tiles
	}
	return gh.reply(s, msg.Seq, MsgChunkData, data)
}

func (gh *GameHandler) handleTileSet(s Session, msg *Message) error {
	if s.PlayerID() == 0 {
		return fmt.Errorf("установка тайла без авторизации")
	}

	var req TileSetRequest
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}

	gh.world.SetTile(req.Pos, world.TileID(req.Tile))
	return nil
}

func (gh *GameHandler) handleMove(s Session, msg *Message) error {
	playerID := s.PlayerID()
	if playerID == 0 {
		return fmt.Errorf("перемещение без авторизации")
	}

	var req MoveRequest
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}

	gh.combat.MoveFighter(playerID, req.Pos)
	return nil
}

func (gh *GameHandler) handleAttack(s Session, msg *Message) error {
	playerID := s.PlayerID()
	if playerID == 0 {
		return fmt.Errorf("атака без авторизации")
	}

	var req AttackRequest
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}

	if req.Start.DistanceTo(req.End) > maxAttackRange {
		return fmt.Errorf("дальность атаки превышает %v", maxAttackRange)
	}

	radius := req.Radius
	if radius < 0 {
		radius = 0
	}
	if radius > maxAttackRadius {
		radius = maxAttackRadius
	}

	samples := req.Samples
	if samples <= 0 {
		samples = gh.attackSamples
	}
	if samples > maxAttackSamples {
		samples = maxAttackSamples
	}

	gh.combat.QueueAttack(combat.AttackRequest{
		AttackerID: playerID,
		Start:      req.Start,
		End:        req.End,
		Radius:     radius,
		Samples:    samples,
	})
	return nil
}

// BroadcastHits рассылает результаты боевого тика атакующим и целям
func (gh *GameHandler) BroadcastHits(hits []combat.HitReport) {
	if len(hits) == 0 {
		return
	}

	byPlayer := make(map[uint64][]combat.HitReport)
	for _, h := range hits {
		byPlayer[h.AttackerID] = append(byPlayer[h.AttackerID], h)
		if h.TargetID != h.AttackerID {
			byPlayer[h.TargetID] = append(byPlayer[h.TargetID], h)
		}
	}

	gh.mu.RLock()
	defer gh.mu.RUnlock()
	for _, s := range gh.sessions {
		reports, ok := byPlayer[s.PlayerID()]
		if !ok {
			continue
		}
		msg, err := NewMessage(MsgAttackResult, &AttackResult{Hits: reports})
		if err != nil {
			continue
		}
		gh.send(s, msg)
	}
}

// OnChunkCreated — часть world.WorldObserver
func (gh *GameHandler) OnChunkCreated(coord vec.Vec2) {}

// OnChunkRemoved — часть world.WorldObserver
func (gh *GameHandler) OnChunkRemoved(coord vec.Vec2) {}

// OnStorageChanged — часть world.WorldObserver
func (gh *GameHandler) OnStorageChanged(coord vec.Vec2, from, to world.StorageKind) {}

// OnTileUpdated рассылает изменение тайла всем авторизованным сессиям
func (gh *GameHandler) OnTileUpdated(u world.TileUpdate) {
	if !u.Changed {
		return
	}

	msg, err := NewMessage(MsgTileUpdate, &TileUpdateNotify{
		Pos:  u.Pos,
		Tile: uint16(u.New),
	})
	if err != nil {
		return
	}

	gh.mu.RLock()
	defer gh.mu.RUnlock()
	for _, s := range gh.sessions {
		if s.PlayerID() == 0 {
			continue
		}
		gh.send(s, msg)
	}
}

// SessionCount возвращает число подключённых сессий
func (gh *GameHandler) SessionCount() int {
	gh.mu.RLock()
	defer gh.mu.RUnlock()
	return len(gh.sessions)
}

func (gh *GameHandler) reply(s Session, seq uint32, t MessageType, payload interface{}) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	msg.Seq = seq
	return gh.send(s, msg)
}

func (gh *GameHandler) send(s Session, msg *Message) error {
	if err := s.Send(msg); err != nil {
		logging.Warn("Ошибка отправки сессии %d: %v", s.ID(), err)
		return err
	}
	metricMessagesTotal.WithLabelValues("out").Inc()
	return nil
}
