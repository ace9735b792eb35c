package combat

import (
	"context"
	"testing"

	"github.com/annel0/tile-arena/internal/vec"
)

func TestCombatSystemTickResolvesAttack(t *testing.T) {
	cs := NewCombatSystem(4.0, nil)

	attacker := NewFighter(1, 100, vec.Vec3Float{})
	defender := NewFighter(2, 200, vec.Vec3Float{X: 3})
	cs.AddFighter(attacker)
	cs.AddFighter(defender)

	cs.QueueAttack(AttackRequest{
		AttackerID: 1,
		Start:      vec.Vec3Float{X: 0, Z: 1},
		End:        vec.Vec3Float{X: 5, Z: 1},
		Radius:     0.5,
		Samples:    10,
	})

	reports := cs.Tick(context.Background())

	if len(reports) == 0 {
		t.Fatal("ожидалось хотя бы одно попадание по защитнику")
	}
	for _, r := range reports {
		if r.AttackerID != 1 {
			t.Errorf("неверный атакующий: %d", r.AttackerID)
		}
		if r.TargetID == 1 {
			t.Error("собственные хартбоксы атакующего не должны засчитываться")
		}
		if r.TargetID != 2 {
			t.Errorf("ожидалась цель 2, получена %d", r.TargetID)
		}
	}
}

func TestCombatSystemMoveFighterReflectsNextTick(t *testing.T) {
	cs := NewCombatSystem(4.0, nil)

	attacker := NewFighter(1, 100, vec.Vec3Float{Y: 50})
	defender := NewFighter(2, 200, vec.Vec3Float{X: 3})
	cs.AddFighter(attacker)
	cs.AddFighter(defender)

	// Уводим защитника с пути атаки
	cs.MoveFighter(2, vec.Vec3Float{X: 3, Y: 30})

	cs.QueueAttack(AttackRequest{
		AttackerID: 1,
		Start:      vec.Vec3Float{X: 0, Z: 1},
		End:        vec.Vec3Float{X: 5, Z: 1},
		Radius:     0.5,
		Samples:    10,
	})

	if reports := cs.Tick(context.Background()); len(reports) != 0 {
		t.Errorf("после ухода с пути попаданий быть не должно, получено %d", len(reports))
	}
}

func TestCombatSystemRemoveFighter(t *testing.T) {
	cs := NewCombatSystem(4.0, nil)

	f := NewFighter(7, 700, vec.Vec3Float{X: 2})
	cs.AddFighter(f)
	cs.Tick(context.Background())

	cs.RemoveFighter(7)
	if cs.FighterCount() != 0 {
		t.Errorf("ожидалось 0 бойцов, получено %d", cs.FighterCount())
	}

	cs.QueueAttack(AttackRequest{
		AttackerID: 1,
		Start:      vec.Vec3Float{X: 0, Z: 1},
		End:        vec.Vec3Float{X: 5, Z: 1},
		Radius:     0.5,
		Samples:    5,
	})
	if reports := cs.Tick(context.Background()); len(reports) != 0 {
		t.Errorf("удалённый боец не должен получать попадания, получено %d", len(reports))
	}
}
