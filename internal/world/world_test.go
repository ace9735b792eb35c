package world

import (
	"testing"

	"github.com/annel0/tile-arena/internal/vec"
)

// recordingObserver накапливает уведомления мира для проверок
type recordingObserver struct {
	created []vec.Vec2
	removed []vec.Vec2
	storage []vec.Vec2
	updates []TileUpdate
}

func (r *recordingObserver) OnChunkCreated(coord vec.Vec2) { r.created = append(r.created, coord) }
func (r *recordingObserver) OnChunkRemoved(coord vec.Vec2) { r.removed = append(r.removed, coord) }
func (r *recordingObserver) OnStorageChanged(coord vec.Vec2, from, to StorageKind) {
	r.storage = append(r.storage, coord)
}
func (r *recordingObserver) OnTileUpdated(u TileUpdate) { r.updates = append(r.updates, u) }

func newTestWorld(t *testing.T, chunkSize int, def TileID) *SparseChunkWorld {
	t.Helper()
	w, err := NewSparseChunkWorld(chunkSize, def)
	if err != nil {
		t.Fatalf("ошибка создания мира: %v", err)
	}
	return w
}

func TestWorldDefaultWriteCreatesNothing(t *testing.T) {
	w := newTestWorld(t, 16, 0)
	obs := &recordingObserver{}
	w.Subscribe(obs)

	w.SetTile(vec.Vec2{X: 100, Y: -100}, 0)

	if w.ChunkCount() != 0 {
		t.Errorf("запись дефолта не должна создавать чанков, ChunkCount=%d", w.ChunkCount())
	}
	if len(obs.updates) != 1 || obs.updates[0].Changed {
		t.Errorf("ожидалось одно no-change уведомление, получено %+v", obs.updates)
	}
	if len(obs.created) != 0 {
		t.Error("не должно быть уведомлений о создании чанка")
	}
}

func TestWorldLazyCreateAndReadBack(t *testing.T) {
	w := newTestWorld(t, 16, 0)
	obs := &recordingObserver{}
	w.Subscribe(obs)

	pos := vec.Vec2{X: -5, Y: 20}
	w.SetTile(pos, 42)

	if got := w.GetTile(pos); got != 42 {
		t.Errorf("ожидался тайл 42, получен %d", got)
	}
	if w.ChunkCount() != 1 {
		t.Errorf("ожидался один чанк, получено %d", w.ChunkCount())
	}

	wantChunk := WorldToChunk(pos, 16)
	if !w.HasChunk(wantChunk) {
		t.Errorf("чанк %v должен существовать", wantChunk)
	}
	if len(obs.created) != 1 || obs.created[0] != wantChunk {
		t.Errorf("ожидалось создание чанка %v, получено %v", wantChunk, obs.created)
	}
	// Чанк создаётся uniform-дефолтным, первая недефолтная запись
	// сразу переводит его в dense
	if len(obs.storage) != 1 {
		t.Errorf("ожидалось одно уведомление о смене хранения, получено %d", len(obs.storage))
	}
}

func TestWorldGetTileUnknownChunk(t *testing.T) {
	w := newTestWorld(t, 16, 9)

	if got := w.GetTile(vec.Vec2{X: 12345, Y: -6789}); got != 9 {
		t.Errorf("несуществующий чанк должен отдавать дефолт 9, получено %d", got)
	}
}

func TestWorldRemoveOnReturnToDefault(t *testing.T) {
	w := newTestWorld(t, 8, 0)
	obs := &recordingObserver{}
	w.Subscribe(obs)

	pos := vec.Vec2{X: 0, Y: 0}
	w.SetTile(pos, 5)

	if got := w.GetTile(pos); got != 5 {
		t.Fatalf("ожидался тайл 5, получен %d", got)
	}
	if w.ChunkCount() != 1 {
		t.Fatalf("ожидался один чанк, получено %d", w.ChunkCount())
	}

	// Сбрасываем dirty, чтобы проверить повторную пометку при удалении
	coord := WorldToChunk(pos, 8)
	w.ClearDirtyRender(coord)

	w.SetTile(pos, 0)

	if got := w.GetTile(pos); got != 0 {
		t.Errorf("ожидался дефолт 0, получен %d", got)
	}
	if w.ChunkCount() != 0 {
		t.Errorf("чанк должен быть удалён, ChunkCount=%d", w.ChunkCount())
	}
	if w.HasChunk(coord) {
		t.Error("HasChunk должен вернуть false после удаления")
	}
	if len(obs.removed) != 1 || obs.removed[0] != coord {
		t.Errorf("ожидалось удаление чанка %v, получено %v", coord, obs.removed)
	}

	// Координата удалённого чанка снова в dirty-множестве, чтобы рендерер
	// очистил участок
	dirty := w.DirtyRenderChunks()
	if len(dirty) != 1 || dirty[0] != coord {
		t.Errorf("ожидался dirty-чанк %v, получено %v", coord, dirty)
	}
}

func TestWorldIdempotentWrites(t *testing.T) {
	w := newTestWorld(t, 8, 0)
	obs := &recordingObserver{}
	w.Subscribe(obs)

	pos := vec.Vec2{X: 3, Y: 3}
	w.SetTile(pos, 7)
	w.SetTile(pos, 7)
	w.SetTile(pos, 7)

	if w.ChunkCount() != 1 {
		t.Errorf("ожидался один чанк, получено %d", w.ChunkCount())
	}
	if len(obs.updates) != 3 {
		t.Fatalf("ожидалось три tile-уведомления, получено %d", len(obs.updates))
	}
	if !obs.updates[0].Changed || obs.updates[1].Changed || obs.updates[2].Changed {
		t.Errorf("только первая запись должна быть изменяющей: %+v", obs.updates)
	}
	if obs.updates[1].Old != 7 || obs.updates[1].New != 7 {
		t.Errorf("повторная запись должна нести old=7,new=7: %+v", obs.updates[1])
	}
}

func TestWorldNeighbouringChunks(t *testing.T) {
	size := 16
	w := newTestWorld(t, size, 0)

	// Соседние тайлы по разные стороны границы чанков
	w.SetTile(vec.Vec2{X: size - 1, Y: 0}, 1)
	w.SetTile(vec.Vec2{X: size, Y: 0}, 1)

	if w.ChunkCount() != 2 {
		t.Errorf("ожидалось два чанка, получено %d", w.ChunkCount())
	}
}

func TestWorldClearDirtyRender(t *testing.T) {
	w := newTestWorld(t, 8, 0)
	pos := vec.Vec2{X: 1, Y: 1}
	w.SetTile(pos, 2)

	coord := WorldToChunk(pos, 8)
	if dirty := w.DirtyRenderChunks(); len(dirty) != 1 {
		t.Fatalf("ожидался один dirty-чанк, получено %v", dirty)
	}

	w.ClearDirtyRender(coord)
	if dirty := w.DirtyRenderChunks(); len(dirty) != 0 {
		t.Errorf("dirty-множество должно быть пустым, получено %v", dirty)
	}

	// Очистка координаты без чанка не должна ничего ломать
	w.ClearDirtyRender(vec.Vec2{X: 99, Y: 99})
}

func TestWorldEndToEndScenario(t *testing.T) {
	// Сценарий: ChunkSize=8, дефолт 0; запись и откат одного тайла
	w := newTestWorld(t, 8, 0)

	w.SetTile(vec.Vec2{X: 0, Y: 0}, 5)
	if got := w.GetTile(vec.Vec2{X: 0, Y: 0}); got != 5 {
		t.Errorf("ожидалось 5, получено %d", got)
	}
	if w.ChunkCount() != 1 {
		t.Errorf("ожидался 1 чанк, получено %d", w.ChunkCount())
	}

	w.SetTile(vec.Vec2{X: 0, Y: 0}, 0)
	if got := w.GetTile(vec.Vec2{X: 0, Y: 0}); got != 0 {
		t.Errorf("ожидалось 0, получено %d", got)
	}
	if w.ChunkCount() != 0 {
		t.Errorf("ожидалось 0 чанков, получено %d", w.ChunkCount())
	}
}

func TestTerrainPainterDeterministic(t *testing.T) {
	w1 := newTestWorld(t, 16, TileSea)
	w2 := newTestWorld(t, 16, TileSea)

	p1 := NewTerrainPainter(1234)
	p2 := NewTerrainPainter(1234)

	n1 := p1.Paint(w1, vec.Vec2{}, 40)
	n2 := p2.Paint(w2, vec.Vec2{}, 40)

	if n1 != n2 {
		t.Fatalf("painter с одним сидом должен дать одинаковый результат: %d != %d", n1, n2)
	}

	for y := -40; y <= 40; y++ {
		for x := -40; x <= 40; x++ {
			pos := vec.Vec2{X: x, Y: y}
			if w1.GetTile(pos) != w2.GetTile(pos) {
				t.Fatalf("расхождение тайлов в %v", pos)
			}
		}
	}
}
