package tests

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/tile-arena/internal/auth"
	"github.com/annel0/tile-arena/internal/combat"
	"github.com/annel0/tile-arena/internal/eventbus"
	"github.com/annel0/tile-arena/internal/network"
	"github.com/annel0/tile-arena/internal/storage"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSession реализует network.Session и копит отправленное
type recordingSession struct {
	id       uint64
	playerID uint64
	sent     []*network.Message
}

func newRecordingSession(id uint64) *recordingSession { return &recordingSession{id: id} }

func (r *recordingSession) ID() uint64            { return r.id }
func (r *recordingSession) Transport() string     { return "test" }
func (r *recordingSession) PlayerID() uint64      { return r.playerID }
func (r *recordingSession) SetPlayerID(id uint64) { r.playerID = id }
func (r *recordingSession) Close() error          { return nil }

func (r *recordingSession) Send(msg *network.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSession) lastOfType(t network.MessageType) *network.Message {
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Type == t {
			return r.sent[i]
		}
	}
	return nil
}

// TestArenaE2E тестирует полный цикл: генерация мира, правки тайлов,
// сохранение и восстановление, бой с публикацией событий
func TestArenaE2E(t *testing.T) {
	bus := eventbus.NewMemoryBus(1000)

	// Считаем события боя, проходящие через шину
	hitEvents := 0
	sub, err := bus.Subscribe(context.Background(),
		eventbus.Filter{Types: []string{"combat_hit"}},
		func(ctx context.Context, ev *eventbus.Envelope) { hitEvents++ })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// === Мир с генерацией стартовой области ===
	w, err := world.NewSparseChunkWorld(16, 0)
	require.NoError(t, err)

	painter := world.NewTerrainPainter(12345)
	painted := painter.Paint(w, vec.Vec2{}, 32)
	assert.Greater(t, painted, 0, "генерация должна закрасить тайлы")
	assert.Greater(t, w.ChunkCount(), 0, "непустые чанки должны существовать")

	// === Сохранение и восстановление ===
	ws, err := storage.NewWorldStorage(t.TempDir())
	require.NoError(t, err)
	defer ws.Close()
	w.Subscribe(ws)

	w.SetTile(vec.Vec2{X: 100, Y: 100}, 4)
	require.NoError(t, ws.SaveWorld(w, true))

	restored, err := world.NewSparseChunkWorld(16, 0)
	require.NoError(t, err)
	require.NoError(t, ws.LoadWorld(restored))
	assert.Equal(t, w.ChunkCount(), restored.ChunkCount())
	assert.Equal(t, world.TileID(4), restored.GetTile(vec.Vec2{X: 100, Y: 100}))

	// === Бой через сетевой обработчик ===
	cs := combat.NewCombatSystem(4.0, bus)
	userRepo, err := auth.NewMemoryUserRepo()
	require.NoError(t, err)
	positions := storage.NewMemoryPositionRepo()
	handler := network.NewGameHandler(w, cs, auth.NewAuthenticator(userRepo), positions)

	attacker := newRecordingSession(1)
	handler.OnConnect(attacker)

	authMsg, err := network.NewMessage(network.MsgAuth, &network.AuthRequest{Username: "test", Password: "test"})
	require.NoError(t, err)
	require.NoError(t, handler.HandleMessage(attacker, authMsg))
	require.NotZero(t, attacker.PlayerID(), "авторизация должна пройти")

	// Цель в зоне удара
	cs.AddFighter(combat.NewFighter(77, 77, vec.Vec3Float{X: 2, Y: 0.5}))

	attackMsg, err := network.NewMessage(network.MsgAttack, &network.AttackRequest{
		Start:   vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.9},
		End:     vec.Vec3Float{X: 3, Y: 0.5, Z: 0.9},
		Radius:  0.5,
		Samples: 8,
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleMessage(attacker, attackMsg))

	hits := cs.Tick(context.Background())
	require.NotEmpty(t, hits, "атака должна попасть по цели")
	assert.Equal(t, uint64(1), hits[0].AttackerID)
	assert.Equal(t, uint64(77), hits[0].TargetID)

	handler.BroadcastHits(hits)
	assert.NotNil(t, attacker.lastOfType(network.MsgAttackResult))

	// Публикация на шину асинхронная
	time.Sleep(100 * time.Millisecond)
	assert.Greater(t, hitEvents, 0, "события боя должны дойти до шины")

	// === Отключение сохраняет позицию ===
	handler.OnDisconnect(attacker)
	assert.Equal(t, 1, cs.FighterCount(), "остаётся только цель")

	pos, found, err := positions.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, found, "позиция должна сохраниться при отключении")
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 0.5}, pos)
}

// TestTCPServerRoundtrip тестирует обмен по настоящему TCP-соединению
func TestTCPServerRoundtrip(t *testing.T) {
	w, err := world.NewSparseChunkWorld(8, 0)
	require.NoError(t, err)

	cs := combat.NewCombatSystem(4.0, nil)
	userRepo, err := auth.NewMemoryUserRepo()
	require.NoError(t, err)
	handler := network.NewGameHandler(w, cs, auth.NewAuthenticator(userRepo), storage.NewMemoryPositionRepo())

	server, err := network.NewTCPServer("127.0.0.1:0", handler)
	require.NoError(t, err)
	server.Start()
	defer server.Stop()

	client, err := network.DialTCP(server.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	// Авторизация
	resp, err := client.Request(&network.AuthRequest{Username: "test", Password: "test"}, network.MsgAuth, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, network.MsgAuthResponse, resp.Type)

	var ar network.AuthResponse
	require.NoError(t, resp.DecodePayload(&ar))
	require.True(t, ar.Success, ar.Message)

	// Запрос пустого чанка
	resp, err = client.Request(&network.ChunkRequest{Coord: vec.Vec2{X: 3, Y: 3}}, network.MsgChunkRequest, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, network.MsgChunkData, resp.Type)

	var chunk network.ChunkData
	require.NoError(t, resp.DecodePayload(&chunk))
	assert.True(t, chunk.Uniform)
	assert.Equal(t, uint16(0), chunk.Fill)
}
