package world

import (
	"github.com/annel0/tile-arena/internal/util"
	"github.com/annel0/tile-arena/internal/vec"
)

// Тайлы стартовой арены. Дефолтный тайл мира — море (TileSea = 0),
// поэтому в разреженной карте хранятся только участки суши.
const (
	TileSea    TileID = 0
	TileSand   TileID = 1
	TileGrass  TileID = 2
	TileRock   TileID = 3
	TileWall   TileID = 4
	TileBridge TileID = 5
)

// Пороговые высоты шума для выбора тайла
const (
	sandStart  = 0.55 // Ниже — море, тайл не пишется
	grassStart = 0.62
	rockStart  = 0.80
)

// TerrainPainter детерминированно закрашивает стартовую область мира
// островами суши по шуму Перлина. Записывает только недефолтные тайлы,
// поэтому море не создаёт чанков.
type TerrainPainter struct {
	noise      *util.NoiseGenerator
	noiseScale float64 // Масштаб шума высот: меньше — крупнее острова
}

// NewTerrainPainter создаёт painter с указанным сидом
func NewTerrainPainter(seed int64) *TerrainPainter {
	return &TerrainPainter{
		noise:      util.NewNoiseGenerator(seed),
		noiseScale: 0.05,
	}
}

// Paint закрашивает квадратную область радиусом radius тайлов вокруг center.
// Возвращает количество записанных недефолтных тайлов.
func (tp *TerrainPainter) Paint(w *SparseChunkWorld, center vec.Vec2, radius int) int {
	painted := 0

	for y := center.Y - radius; y <= center.Y+radius; y++ {
		for x := center.X - radius; x <= center.X+radius; x++ {
			id := tp.tileAt(x, y)
			if id == TileSea {
				continue
			}
			w.SetTile(vec.Vec2{X: x, Y: y}, id)
			painted++
		}
	}

	return painted
}

// tileAt возвращает тайл для мировых координат по высоте шума
func (tp *TerrainPainter) tileAt(x, y int) TileID {
	height := tp.noise.Noise2D(float64(x)*tp.noiseScale, float64(y)*tp.noiseScale)

	switch {
	case height >= rockStart:
		return TileRock
	case height >= grassStart:
		return TileGrass
	case height >= sandStart:
		return TileSand
	default:
		return TileSea
	}
}
