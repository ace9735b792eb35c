package spatial

import (
	"math"

	"github.com/annel0/tile-arena/internal/vec"
)

// ShapeKind определяет форму хартбокса
type ShapeKind uint8

const (
	// ShapeSphere — сфера: локальный центр + радиус
	ShapeSphere ShapeKind = iota
	// ShapeBox — осевой параллелепипед: локальный центр + полуразмеры
	ShapeBox
)

// Aabb представляет осевой ограничивающий параллелепипед в мировых координатах
type Aabb struct {
	Min vec.Vec3Float
	Max vec.Vec3Float
}

// Intersects проверяет пересечение двух AABB (границы включительно)
func (a Aabb) Intersects(b Aabb) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// Union возвращает AABB, охватывающий оба аргумента
func (a Aabb) Union(b Aabb) Aabb {
	return Aabb{
		Min: a.Min.Min(b.Min),
		Max: a.Max.Max(b.Max),
	}
}

// Expand возвращает AABB, расширенный на r по всем осям
func (a Aabb) Expand(r float64) Aabb {
	d := vec.Vec3Float{X: r, Y: r, Z: r}
	return Aabb{Min: a.Min.Sub(d), Max: a.Max.Add(d)}
}

// AabbFromSphere строит AABB вокруг сферы
func AabbFromSphere(center vec.Vec3Float, radius float64) Aabb {
	d := vec.Vec3Float{X: radius, Y: radius, Z: radius}
	return Aabb{Min: center.Sub(d), Max: center.Add(d)}
}

// HurtShape описывает форму хартбокса в локальных координатах владельца
type HurtShape struct {
	Kind   ShapeKind
	Center vec.Vec3Float // Локальное смещение от позиции владельца
	Radius float64       // Для ShapeSphere
	Half   vec.Vec3Float // Полуразмеры для ShapeBox
}

// SphereShape создаёт сферический хартбокс
func SphereShape(center vec.Vec3Float, radius float64) HurtShape {
	return HurtShape{Kind: ShapeSphere, Center: center, Radius: radius}
}

// BoxShape создаёт прямоугольный хартбокс
func BoxShape(center, half vec.Vec3Float) HurtShape {
	return HurtShape{Kind: ShapeBox, Center: center, Half: half}
}

// HurtBox представляет одну зону поражения боевой сущности.
// Владелец каждый тик пересчитывает мировую геометрию через RefreshWorld,
// после чего вызывает SyncAabbCache у реестра.
type HurtBox struct {
	Owner  HurtBoxOwner // Владеющая группа
	Region string       // Метка зоны ("head", "torso"…) для резолвера урона
	Shape  HurtShape    // Форма в локальных координатах

	// Мировая геометрия, действительна после RefreshWorld
	WorldCenter vec.Vec3Float
	WorldRadius float64       // Для ShapeSphere
	WorldHalf   vec.Vec3Float // Для ShapeBox
}

// HurtBoxOwner объединяет хартбоксы одной боевой сущности.
// Реестр индексирует и заменяет записи целыми группами.
type HurtBoxOwner interface {
	// HurtBoxes возвращает хартбоксы группы
	HurtBoxes() []*HurtBox
}

// RefreshWorld пересчитывает мировую геометрию хартбокса
// для позиции владельца origin
func (hb *HurtBox) RefreshWorld(origin vec.Vec3Float) {
	hb.WorldCenter = origin.Add(hb.Shape.Center)
	hb.WorldRadius = hb.Shape.Radius
	hb.WorldHalf = hb.Shape.Half
}

// WorldAabb возвращает текущий мировой AABB хартбокса
func (hb *HurtBox) WorldAabb() Aabb {
	if hb.Shape.Kind == ShapeSphere {
		return AabbFromSphere(hb.WorldCenter, hb.WorldRadius)
	}
	return Aabb{
		Min: hb.WorldCenter.Sub(hb.WorldHalf),
		Max: hb.WorldCenter.Add(hb.WorldHalf),
	}
}

// ClosestPoint возвращает ближайшую к p точку AABB
func (a Aabb) ClosestPoint(p vec.Vec3Float) vec.Vec3Float {
	return vec.Vec3Float{
		X: math.Max(a.Min.X, math.Min(p.X, a.Max.X)),
		Y: math.Max(a.Min.Y, math.Min(p.Y, a.Max.Y)),
		Z: math.Max(a.Min.Z, math.Min(p.Z, a.Max.Z)),
	}
}

// Contains проверяет, лежит ли точка внутри AABB (границы включительно)
func (a Aabb) Contains(p vec.Vec3Float) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X &&
		p.Y >= a.Min.Y && p.Y <= a.Max.Y &&
		p.Z >= a.Min.Z && p.Z <= a.Max.Z
}
