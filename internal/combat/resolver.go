package combat

import (
	"sort"

	"github.com/annel0/tile-arena/internal/spatial"
	"github.com/annel0/tile-arena/internal/vec"
)

// SweepHit описывает одно попадание swept-sphere запроса
type SweepHit struct {
	Target *spatial.HurtBox // Поражённый хартбокс
	Point  vec.Vec3Float    // Мировая точка контакта
	Normal vec.Vec3Float    // Нормаль контакта (от цели к сфере)
	Region string           // Метка зоны хартбокса
	Param  float64          // Параметр вдоль пути [0,1], где произошло попадание
}

// ActionResolver выполняет дискретно-сэмплированные swept-sphere запросы
// против хартбоксов из реестра. Ошибок не возвращает: вырожденный ввод
// (нулевой путь, нулевой радиус) деградирует до пустого или точечного
// результата.
type ActionResolver struct {
	registry *spatial.HurtBoxRegistry
}

// NewActionResolver создаёт резолвер поверх указанного реестра
func NewActionResolver(registry *spatial.HurtBoxRegistry) *ActionResolver {
	return &ActionResolver{registry: registry}
}

// SweptSphereQuery проводит сферу радиуса radius от start к end и возвращает
// попадания, отсортированные по возрастанию параметра пути.
//
// Путь сэмплируется samples+1 равномерными точками, включая оба конца;
// samples меньше 1 поднимается до 1 (минимум две точки). Каждый хартбокс
// засчитывается один раз — на первом сэмпле, где сфера его задела.
// start == end вырождается в стационарный overlap-запрос.
func (ar *ActionResolver) SweptSphereQuery(start, end vec.Vec3Float, radius float64, samples int) []SweepHit {
	if samples < 1 {
		samples = 1
	}

	// Консервативный broadphase: AABB всей заметаемой капсулы
	sweepBounds := spatial.AabbFromSphere(start, radius).
		Union(spatial.AabbFromSphere(end, radius))

	candidates := ar.registry.Query(sweepBounds)
	if len(candidates) == 0 {
		return nil
	}

	hits := make([]SweepHit, 0, len(candidates))
	claimed := make(map[*spatial.HurtBox]struct{}, len(candidates))

	for i := 0; i <= samples; i++ {
		t := float64(i) / float64(samples)
		center := start.Lerp(end, t)

		for _, hb := range candidates {
			if _, done := claimed[hb]; done {
				continue
			}

			hit, point, normal := sphereOverlap(center, radius, hb)
			if !hit {
				continue
			}

			claimed[hb] = struct{}{}
			hits = append(hits, SweepHit{
				Target: hb,
				Point:  point,
				Normal: normal,
				Region: hb.Region,
				Param:  t,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Param < hits[j].Param
	})
	return hits
}

// sphereOverlap проверяет перекрытие сферы с хартбоксом и возвращает
// точку и нормаль контакта
func sphereOverlap(center vec.Vec3Float, radius float64, hb *spatial.HurtBox) (bool, vec.Vec3Float, vec.Vec3Float) {
	if hb.Shape.Kind == spatial.ShapeSphere {
		return sphereVsSphere(center, radius, hb.WorldCenter, hb.WorldRadius)
	}
	return sphereVsBox(center, radius, hb.WorldAabb())
}

// sphereVsSphere — перекрытие двух сфер: сравнение расстояния центров
// с суммой радиусов
func sphereVsSphere(aCenter vec.Vec3Float, aRadius float64, bCenter vec.Vec3Float, bRadius float64) (bool, vec.Vec3Float, vec.Vec3Float) {
	delta := aCenter.Sub(bCenter)
	dist := delta.Length()
	if dist > aRadius+bRadius {
		return false, vec.Vec3Float{}, vec.Vec3Float{}
	}

	var normal vec.Vec3Float
	if dist > 0 {
		normal = delta.Mul(1 / dist)
	} else {
		// Совпавшие центры: произвольная вертикальная нормаль
		normal = vec.Vec3Float{Z: 1}
	}

	point := bCenter.Add(normal.Mul(bRadius))
	return true, point, normal
}

// sphereVsBox — перекрытие сферы с AABB через ближайшую точку.
// Если центр сферы внутри коробки, нормаль берётся по оси минимального
// проникновения.
func sphereVsBox(center vec.Vec3Float, radius float64, box spatial.Aabb) (bool, vec.Vec3Float, vec.Vec3Float) {
	closest := box.ClosestPoint(center)
	delta := center.Sub(closest)
	dist := delta.Length()

	if dist > radius {
		return false, vec.Vec3Float{}, vec.Vec3Float{}
	}

	if dist > 0 {
		// Центр снаружи: нормаль от ближайшей точки к центру сферы
		return true, closest, delta.Mul(1 / dist)
	}

	// Центр внутри коробки: ищем грань с минимальным проникновением
	return true, center, insideBoxNormal(center, box)
}

// insideBoxNormal возвращает нормаль грани AABB, ближайшей к точке p
func insideBoxNormal(p vec.Vec3Float, box spatial.Aabb) vec.Vec3Float {
	type face struct {
		depth  float64
		normal vec.Vec3Float
	}

	faces := []face{
		{p.X - box.Min.X, vec.Vec3Float{X: -1}},
		{box.Max.X - p.X, vec.Vec3Float{X: 1}},
		{p.Y - box.Min.Y, vec.Vec3Float{Y: -1}},
		{box.Max.Y - p.Y, vec.Vec3Float{Y: 1}},
		{p.Z - box.Min.Z, vec.Vec3Float{Z: -1}},
		{box.Max.Z - p.Z, vec.Vec3Float{Z: 1}},
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.depth < best.depth {
			best = f
		}
	}

	return best.normal
}
