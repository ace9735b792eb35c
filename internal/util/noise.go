package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseGenerator оборачивает шум Перлина с фиксированным сидом.
// Экземпляр создаётся явно и передаётся потребителям — глобального
// состояния нет, генерация детерминирована по сиду.
type NoiseGenerator struct {
	perlin *perlin.Perlin
	seed   int64
}

// NewNoiseGenerator создаёт генератор шума с указанным сидом
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &NoiseGenerator{
		perlin: perlin.NewPerlin(alpha, beta, n, seed),
		seed:   seed,
	}
}

// Seed возвращает сид генератора
func (ng *NoiseGenerator) Seed() int64 {
	return ng.seed
}

// Noise2D возвращает значение шума Перлина для указанных координат,
// приведённое к диапазону [0, 1]
func (ng *NoiseGenerator) Noise2D(x, y float64) float64 {
	// Noise2D библиотеки возвращает значение в диапазоне [-1, 1]
	noise := ng.perlin.Noise2D(x, y)
	return (noise + 1.0) / 2.0
}
