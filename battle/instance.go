package battle

import (
	"math/rand/v2"

	"github.com/wippyai/wasm-bridge/protocol"
)

// Side of an instance.
type Side uint8

const (
	SideA Side = iota
	SideB
)

// Instance is a running battle driven by Tick.
type Instance struct {
	ID       uint32
	Teams    [2]uint32
	Health   [2]int32
	Round    int
	Finished bool
	Winner   uint32

	defending [2]bool
	bonus     [2]int32
}

func newInstance(id, sideA, sideB uint32, health int32) *Instance {
	return &Instance{
		ID:     id,
		Teams:  [2]uint32{sideA, sideB},
		Health: [2]int32{health, health},
	}
}

func (in *Instance) side(team uint32) (Side, bool) {
	switch team {
	case in.Teams[SideA]:
		return SideA, true
	case in.Teams[SideB]:
		return SideB, true
	}
	return 0, false
}

// roll draws from [MinDamage, MaxDamage]. The span is computed in int64 so
// settings that bypass Validate cannot overflow it.
func roll(rng *rand.Rand, s Settings) int32 {
	span := int64(s.MaxDamage) - int64(s.MinDamage) + 1
	if span <= 1 {
		return s.MinDamage
	}
	return int32(int64(s.MinDamage) + rng.Int64N(span))
}

// strike applies one hit from attacker to the other side and reports
// whether the target fell.
func (in *Instance) strike(rng *rand.Rand, s Settings, attacker Side) bool {
	target := 1 - attacker
	dmg := roll(rng, s) + in.bonus[attacker]
	in.bonus[attacker] = 0
	if in.defending[target] {
		dmg /= 2
		in.defending[target] = false
	}
	in.Health[target] -= dmg
	if in.Health[target] <= 0 {
		in.Finished = true
		in.Winner = in.Teams[attacker]
		return true
	}
	return false
}

// round runs A's strike and, if B survives, B's counter.
func (in *Instance) round(rng *rand.Rand, s Settings) {
	if in.Finished {
		return
	}
	in.Round++
	if in.strike(rng, s, SideA) {
		return
	}
	in.strike(rng, s, SideB)
}

// result summarises a finished instance. Damage is measured from initial.
func (in *Instance) result(initial int32) *protocol.BattleResult {
	loser := in.Teams[SideA]
	if in.Winner == loser {
		loser = in.Teams[SideB]
	}
	return &protocol.BattleResult{
		Winner:         in.Winner,
		Loser:          loser,
		AttackerDamage: initial - in.Health[SideA],
		DefenderDamage: initial - in.Health[SideB],
		Score:          int64(initial-in.Health[SideB]) * 10,
	}
}
