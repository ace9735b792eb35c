package combat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/annel0/tile-arena/internal/eventbus"
	"github.com/annel0/tile-arena/internal/logging"
	"github.com/annel0/tile-arena/internal/spatial"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	attacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "combat",
		Name:      "attacks_total",
		Help:      "Общее число обработанных атак.",
	})
	hitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "combat",
		Name:      "hits_total",
		Help:      "Общее число попаданий по хартбоксам.",
	})
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "combat",
		Name:      "tick_duration_seconds",
		Help:      "Длительность боевого тика.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
)

func init() {
	prometheus.MustRegister(attacksTotal, hitsTotal, tickDuration)
}

// Fighter представляет боевую сущность с набором хартбоксов.
// Является группой-владельцем для HurtBoxRegistry.
type Fighter struct {
	ID     uint64
	UserID uint64
	Pos    vec.Vec3Float

	boxes []*spatial.HurtBox
}

// NewFighter создаёт бойца со стандартным набором хартбоксов:
// сфера головы и коробка торса.
func NewFighter(id, userID uint64, pos vec.Vec3Float) *Fighter {
	f := &Fighter{ID: id, UserID: userID, Pos: pos}
	f.boxes = []*spatial.HurtBox{
		{
			Owner:  f,
			Region: "head",
			Shape:  spatial.SphereShape(vec.Vec3Float{Z: 1.6}, 0.25),
		},
		{
			Owner:  f,
			Region: "torso",
			Shape:  spatial.BoxShape(vec.Vec3Float{Z: 0.9}, vec.Vec3Float{X: 0.4, Y: 0.4, Z: 0.7}),
		},
	}
	return f
}

// HurtBoxes возвращает хартбоксы бойца
func (f *Fighter) HurtBoxes() []*spatial.HurtBox {
	return f.boxes
}

// refreshWorldGeometry пересчитывает мировую геометрию хартбоксов
func (f *Fighter) refreshWorldGeometry() {
	for _, hb := range f.boxes {
		hb.RefreshWorld(f.Pos)
	}
}

// AttackRequest описывает запрос атаки, поставленный в очередь тика
type AttackRequest struct {
	AttackerID uint64
	Start      vec.Vec3Float
	End        vec.Vec3Float
	Radius     float64
	Samples    int
}

// HitReport — результат атаки по одному хартбоксу
type HitReport struct {
	AttackerID uint64        `json:"attacker_id"`
	TargetID   uint64        `json:"target_id"`
	Region     string        `json:"region"`
	Param      float64       `json:"param"`
	Point      vec.Vec3Float `json:"point"`
	Normal     vec.Vec3Float `json:"normal"`
}

// CombatSystem — по-тиковый драйвер боевой части: владеет реестром
// хартбоксов и резолвером, держит бойцов и очередь атак.
//
// Порядок тика фиксированный: сначала все бойцы обновляют мировую
// геометрию и синхронизируются в реестре, затем резолвятся атаки.
type CombatSystem struct {
	registry *spatial.HurtBoxRegistry
	resolver *ActionResolver
	bus      eventbus.EventBus // Может быть nil — публикация отключена

	fighters map[uint64]*Fighter
	pending  []AttackRequest
	mu       sync.RWMutex
}

// NewCombatSystem создаёт боевую систему с собственным реестром
func NewCombatSystem(cellSize float64, bus eventbus.EventBus) *CombatSystem {
	registry := spatial.NewHurtBoxRegistry(cellSize)
	return &CombatSystem{
		registry: registry,
		resolver: NewActionResolver(registry),
		bus:      bus,
		fighters: make(map[uint64]*Fighter),
	}
}

// Registry возвращает реестр хартбоксов системы
func (cs *CombatSystem) Registry() *spatial.HurtBoxRegistry {
	return cs.registry
}

// Resolver возвращает резолвер системы
func (cs *CombatSystem) Resolver() *ActionResolver {
	return cs.resolver
}

// AddFighter регистрирует бойца в системе
func (cs *CombatSystem) AddFighter(f *Fighter) {
	cs.mu.Lock()
	cs.fighters[f.ID] = f
	cs.mu.Unlock()

	cs.registry.Register(f)
}

// RemoveFighter убирает бойца и его хартбоксы
func (cs *CombatSystem) RemoveFighter(id uint64) {
	cs.mu.Lock()
	f, exists := cs.fighters[id]
	delete(cs.fighters, id)
	cs.mu.Unlock()

	if exists {
		cs.registry.Unregister(f)
	}
}

// Fighter возвращает бойца по ID
func (cs *CombatSystem) Fighter(id uint64) (*Fighter, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	f, exists := cs.fighters[id]
	return f, exists
}

// FighterCount возвращает количество бойцов
func (cs *CombatSystem) FighterCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.fighters)
}

// ForEachFighter вызывает fn для каждого бойца под блокировкой чтения
func (cs *CombatSystem) ForEachFighter(fn func(f *Fighter)) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, f := range cs.fighters {
		fn(f)
	}
}

// MoveFighter обновляет позицию бойца.
// Мировая геометрия хартбоксов пересчитается на ближайшем тике.
func (cs *CombatSystem) MoveFighter(id uint64, pos vec.Vec3Float) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if f, exists := cs.fighters[id]; exists {
		f.Pos = pos
	}
}

// QueueAttack ставит атаку в очередь текущего тика
func (cs *CombatSystem) QueueAttack(req AttackRequest) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.pending = append(cs.pending, req)
}

// Tick выполняет один боевой тик и возвращает все попадания.
// Геометрия каждого бойца обновляется до синхронизации его группы,
// все синхронизации — до первого запроса.
func (cs *CombatSystem) Tick(ctx context.Context) []HitReport {
	started := time.Now()

	cs.mu.Lock()
	fighters := make([]*Fighter, 0, len(cs.fighters))
	for _, f := range cs.fighters {
		fighters = append(fighters, f)
	}
	attacks := cs.pending
	cs.pending = nil
	cs.mu.Unlock()

	for _, f := range fighters {
		f.refreshWorldGeometry()
		cs.registry.SyncAabbCache(f)
	}

	reports := make([]HitReport, 0)
	for _, req := range attacks {
		attacksTotal.Inc()

		hits := cs.resolver.SweptSphereQuery(req.Start, req.End, req.Radius, req.Samples)
		for _, hit := range hits {
			target, ok := hit.Target.Owner.(*Fighter)
			if !ok {
				continue
			}
			// Свои хартбоксы атакующему не засчитываем
			if target.ID == req.AttackerID {
				continue
			}

			hitsTotal.Inc()
			report := HitReport{
				AttackerID: req.AttackerID,
				TargetID:   target.ID,
				Region:     hit.Region,
				Param:      hit.Param,
				Point:      hit.Point,
				Normal:     hit.Normal,
			}
			reports = append(reports, report)
			cs.publishHit(ctx, report)
		}
	}

	tickDuration.Observe(time.Since(started).Seconds())
	return reports
}

// publishHit отправляет попадание в шину событий
func (cs *CombatSystem) publishHit(ctx context.Context, report HitReport) {
	if cs.bus == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		logging.Error("Ошибка сериализации попадания: %v", err)
		return
	}

	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    "combat",
		EventType: "combat_hit",
		Version:   1,
		Priority:  5,
		Payload:   payload,
	}
	if err := cs.bus.Publish(ctx, ev); err != nil {
		logging.Warn("Не удалось опубликовать попадание: %v", err)
	}
}
