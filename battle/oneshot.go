package battle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/protocol"
)

// OneShotRounds is the number of rounds Execute runs.
const OneShotRounds = 3

// ReplayVersion tags replays produced by Execute.
const ReplayVersion = "1.0"

func validateRequest(req *protocol.StartBattle) error {
	a, d := req.Attacker.TeamID, req.Defender.TeamID
	if a == 0 || d == 0 || a == d {
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("battle %d needs two distinct non-zero teams, got %d and %d", req.BattleID, a, d), req.BattleID)
	}
	return nil
}

// Execute runs a fixed three-round battle. Both sides strike every round;
// the side with more health left wins and ties go to the defender. The full
// replay is announced as a battle_completed notification.
func (m *Manager) Execute(ctx context.Context, req *protocol.StartBattle) (protocol.BattleResult, error) {
	if err := validateRequest(req); err != nil {
		return protocol.BattleResult{}, err
	}

	replay := &protocol.BattleReplay{
		BattleID: req.BattleID,
		Attacker: req.Attacker,
		Defender: req.Defender,
		Version:  ReplayVersion,
	}

	s, atk, def, notify := m.simulate(req, replay)

	winner, loser := req.Defender.TeamID, req.Attacker.TeamID
	if atk > def {
		winner, loser = loser, winner
	}
	replay.Events = append(replay.Events, protocol.BattleEvent{
		Timestamp: replay.End,
		Type:      protocol.EventEnd,
		Performer: winner,
		Target:    loser,
		Value:     1,
	})
	replay.Result = protocol.BattleResult{
		Winner:         winner,
		Loser:          loser,
		AttackerDamage: s.InitialHealth - atk,
		DefenderDamage: s.InitialHealth - def,
		Duration:       replay.End - replay.Start,
		Score:          int64(s.InitialHealth-def) * 10,
	}

	n := m.records.Get()
	n.BattleID = req.BattleID
	n.Type = protocol.NotificationBattleCompleted
	n.Timestamp = replay.End
	n.Payload = replay.Append(n.Payload)
	m.deliver(ctx, notify, n)

	m.logger.Debug("battle executed",
		zap.Uint32("battle_id", req.BattleID),
		zap.Uint32("winner", winner),
		zap.Int64("score", replay.Result.Score))
	return replay.Result, nil
}

// simulate rolls the rounds of a one-shot battle under the lock and returns
// the settings used and the health left on each side.
func (m *Manager) simulate(req *protocol.StartBattle, replay *protocol.BattleReplay) (Settings, int32, int32, Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.settings
	replay.Start = m.now().UnixMilli()
	atk, def := s.InitialHealth, s.InitialHealth
	for i := 0; i < OneShotRounds; i++ {
		hit := roll(m.rng, s)
		def -= hit
		replay.Events = append(replay.Events, protocol.BattleEvent{
			Timestamp: m.now().UnixMilli(),
			Type:      protocol.EventAttack,
			Performer: req.Attacker.TeamID,
			Target:    req.Defender.TeamID,
			Value:     hit,
		})
		counter := roll(m.rng, s)
		atk -= counter
		replay.Events = append(replay.Events, protocol.BattleEvent{
			Timestamp: m.now().UnixMilli(),
			Type:      protocol.EventAttack,
			Performer: req.Defender.TeamID,
			Target:    req.Attacker.TeamID,
			Value:     counter,
		})
	}
	replay.End = m.now().UnixMilli()
	return s, atk, def, m.notify
}

// ExecuteBatch runs every battle of req. Invalid battles count as failures
// and do not stop the batch.
func (m *Manager) ExecuteBatch(ctx context.Context, req *protocol.BatchBattleRequest) *protocol.BatchBattleResponse {
	resp := &protocol.BatchBattleResponse{BatchID: req.BatchID}
	start := m.now()
	for i := range req.Battles {
		res, err := m.Execute(ctx, &req.Battles[i])
		if err != nil {
			m.logger.Warn("battle in batch failed",
				zap.String("batch_id", req.BatchID),
				zap.Uint32("battle_id", req.Battles[i].BattleID),
				zap.Error(err))
			resp.Failure++
			continue
		}
		resp.Results = append(resp.Results, res)
		resp.Success++
	}
	resp.TotalDuration = m.now().Sub(start).Milliseconds()
	return resp
}
