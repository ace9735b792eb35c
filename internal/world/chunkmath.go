package world

import (
	"github.com/annel0/tile-arena/internal/vec"
)

// Чистые функции преобразования координат между мировой сеткой тайлов,
// сеткой чанков и локальными координатами внутри чанка.
//
// Для любого целого a и положительного b выполняется инвариант:
//
//	FloorDiv(a, b)*b + FloorMod(a, b) == a
//	FloorMod(a, b) ∈ [0, b-1]

// FloorDiv делит a на b с округлением к минус бесконечности.
// Обычное целочисленное деление Go округляет к нулю, из-за чего
// отрицательные координаты попадали бы не в тот чанк.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// FloorMod возвращает неотрицательный остаток от деления a на b.
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// WorldToChunk возвращает координаты чанка, содержащего тайл cell.
// Например, cell.X = -1 при chunkSize = 32 даёт чанк с X = -1, а не 0.
func WorldToChunk(cell vec.Vec2, chunkSize int) vec.Vec2 {
	return vec.Vec2{
		X: FloorDiv(cell.X, chunkSize),
		Y: FloorDiv(cell.Y, chunkSize),
	}
}

// WorldToLocal возвращает локальные координаты тайла cell внутри его чанка.
// Обе компоненты всегда в диапазоне [0, chunkSize-1].
func WorldToLocal(cell vec.Vec2, chunkSize int) vec.Vec2 {
	return vec.Vec2{
		X: FloorMod(cell.X, chunkSize),
		Y: FloorMod(cell.Y, chunkSize),
	}
}

// ChunkOrigin возвращает мировые координаты тайла (0,0) чанка chunk.
func ChunkOrigin(chunk vec.Vec2, chunkSize int) vec.Vec2 {
	return vec.Vec2{
		X: chunk.X * chunkSize,
		Y: chunk.Y * chunkSize,
	}
}
