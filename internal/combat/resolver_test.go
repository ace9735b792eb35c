package combat

import (
	"testing"

	"github.com/annel0/tile-arena/internal/spatial"
	"github.com/annel0/tile-arena/internal/vec"
)

// staticOwner — неподвижная группа хартбоксов для тестов резолвера
type staticOwner struct {
	boxes []*spatial.HurtBox
}

func (o *staticOwner) HurtBoxes() []*spatial.HurtBox { return o.boxes }

func placeSphere(reg *spatial.HurtBoxRegistry, pos vec.Vec3Float, radius float64) *spatial.HurtBox {
	o := &staticOwner{}
	hb := &spatial.HurtBox{Owner: o, Region: "torso", Shape: spatial.SphereShape(vec.Vec3Float{}, radius)}
	hb.RefreshWorld(pos)
	o.boxes = []*spatial.HurtBox{hb}
	reg.Register(o)
	reg.SyncAabbCache(o)
	return hb
}

func placeBox(reg *spatial.HurtBoxRegistry, pos, half vec.Vec3Float) *spatial.HurtBox {
	o := &staticOwner{}
	hb := &spatial.HurtBox{Owner: o, Region: "torso", Shape: spatial.BoxShape(vec.Vec3Float{}, half)}
	hb.RefreshWorld(pos)
	o.boxes = []*spatial.HurtBox{hb}
	reg.Register(o)
	reg.SyncAabbCache(o)
	return hb
}

func TestStationaryOverlapQuery(t *testing.T) {
	reg := spatial.NewHurtBoxRegistry(4.0)
	resolver := NewActionResolver(reg)

	target := placeSphere(reg, vec.Vec3Float{X: 1}, 0.5)

	// start == end: стационарный overlap-запрос
	pos := vec.Vec3Float{X: 0.2}
	hits := resolver.SweptSphereQuery(pos, pos, 0.5, 5)

	if len(hits) != 1 {
		t.Fatalf("ожидалось одно попадание, получено %d", len(hits))
	}
	if hits[0].Target != target {
		t.Error("попадание не по той цели")
	}
	if hits[0].Param != 0 {
		t.Errorf("стационарный запрос должен дать param=0, получено %f", hits[0].Param)
	}
	if hits[0].Region != "torso" {
		t.Errorf("ожидалась зона torso, получена %q", hits[0].Region)
	}
}

func TestSweepHitsSortedByParam(t *testing.T) {
	reg := spatial.NewHurtBoxRegistry(4.0)
	resolver := NewActionResolver(reg)

	near := placeSphere(reg, vec.Vec3Float{X: 2}, 0.5)
	far := placeSphere(reg, vec.Vec3Float{X: 8}, 0.5)

	hits := resolver.SweptSphereQuery(vec.Vec3Float{}, vec.Vec3Float{X: 10}, 0.5, 20)

	if len(hits) != 2 {
		t.Fatalf("ожидалось два попадания, получено %d", len(hits))
	}
	if hits[0].Target != near || hits[1].Target != far {
		t.Error("попадания должны идти по возрастанию параметра пути")
	}
	if hits[0].Param >= hits[1].Param {
		t.Errorf("параметры не упорядочены: %f >= %f", hits[0].Param, hits[1].Param)
	}
}

func TestSweepClaimsTargetOnce(t *testing.T) {
	reg := spatial.NewHurtBoxRegistry(4.0)
	resolver := NewActionResolver(reg)

	// Длинная коробка вдоль всего пути: заденется многими сэмплами
	placeBox(reg, vec.Vec3Float{X: 5}, vec.Vec3Float{X: 5, Y: 1, Z: 1})

	hits := resolver.SweptSphereQuery(vec.Vec3Float{}, vec.Vec3Float{X: 10}, 0.5, 10)
	if len(hits) != 1 {
		t.Errorf("хартбокс должен засчитаться один раз за весь свип, получено %d", len(hits))
	}
}

func TestSweepOutsideBroadphaseNeverHit(t *testing.T) {
	reg := spatial.NewHurtBoxRegistry(4.0)
	resolver := NewActionResolver(reg)

	placeSphere(reg, vec.Vec3Float{X: 5, Y: 50}, 1.0)

	hits := resolver.SweptSphereQuery(vec.Vec3Float{}, vec.Vec3Float{X: 10}, 0.5, 10)
	if len(hits) != 0 {
		t.Errorf("цель вне broadphase-границ не должна возвращаться, получено %d", len(hits))
	}
}

func TestSweepSamplesClampedToOne(t *testing.T) {
	reg := spatial.NewHurtBoxRegistry(4.0)
	resolver := NewActionResolver(reg)

	// Цель только у конца пути: при samples<1 всё равно тестируются
	// обе конечные точки
	target := placeSphere(reg, vec.Vec3Float{X: 10}, 0.5)

	hits := resolver.SweptSphereQuery(vec.Vec3Float{}, vec.Vec3Float{X: 10}, 0.5, 0)
	if len(hits) != 1 {
		t.Fatalf("ожидалось попадание на конечной точке, получено %d", len(hits))
	}
	if hits[0].Target != target || hits[0].Param != 1 {
		t.Errorf("ожидалось попадание в конце пути (param=1), получено param=%f", hits[0].Param)
	}
}

func TestSphereVsSphereCoincidentCenters(t *testing.T) {
	hit, _, normal := sphereVsSphere(vec.Vec3Float{X: 3}, 0.5, vec.Vec3Float{X: 3}, 0.5)
	if !hit {
		t.Fatal("совпавшие центры должны давать перекрытие")
	}
	if normal != (vec.Vec3Float{Z: 1}) {
		t.Errorf("для совпавших центров ожидалась вертикальная нормаль, получена %v", normal)
	}
}

func TestSphereVsBoxInsideFallback(t *testing.T) {
	box := spatial.Aabb{
		Min: vec.Vec3Float{X: 0, Y: 0, Z: 0},
		Max: vec.Vec3Float{X: 10, Y: 10, Z: 10},
	}

	// Центр внутри коробки, ближе всего к грани X=0
	hit, _, normal := sphereVsBox(vec.Vec3Float{X: 1, Y: 5, Z: 5}, 0.5, box)
	if !hit {
		t.Fatal("сфера внутри коробки должна давать перекрытие")
	}
	if normal != (vec.Vec3Float{X: -1}) {
		t.Errorf("ожидалась нормаль оси минимального проникновения {-1,0,0}, получена %v", normal)
	}
}

func TestSweepEmptyWorld(t *testing.T) {
	reg := spatial.NewHurtBoxRegistry(4.0)
	resolver := NewActionResolver(reg)

	hits := resolver.SweptSphereQuery(vec.Vec3Float{}, vec.Vec3Float{X: 5}, 0.5, 5)
	if len(hits) != 0 {
		t.Errorf("пустой мир должен давать пустой результат, получено %d", len(hits))
	}
}
