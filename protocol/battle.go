package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Team identifies one side of a battle.
type Team struct {
	Name   string
	TeamID uint32
}

func (t *Team) Reset() { *t = Team{} }

func (t *Team) Append(b []byte) []byte {
	b = appendU32(b, 1, t.TeamID)
	return appendString(b, 2, t.Name)
}

func (t *Team) Unmarshal(b []byte) error {
	t.Reset()
	return walk("team", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32("team", num, typ, b, &t.TeamID)
		case 2:
			return str("team", num, typ, b, &t.Name)
		}
		return -1, nil
	})
}

// submessage decodes a length-delimited field into m.
func submessage(msg string, num protowire.Number, typ protowire.Type, b []byte, m interface{ Unmarshal([]byte) error }) (int, error) {
	v, n, err := bytesField(msg, num, typ, b)
	if err != nil {
		return 0, err
	}
	return n, m.Unmarshal(v)
}

// StartBattle requests a one-shot battle.
type StartBattle struct {
	Attacker Team
	Defender Team
	BattleID uint32
}

func (s *StartBattle) Reset() { *s = StartBattle{} }

func (s *StartBattle) Append(b []byte) []byte {
	b = appendU32(b, 1, s.BattleID)
	b = appendMessage(b, 2, s.Attacker.Append)
	return appendMessage(b, 3, s.Defender.Append)
}

func (s *StartBattle) Unmarshal(b []byte) error {
	s.Reset()
	return walk("start_battle", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32("start_battle", num, typ, b, &s.BattleID)
		case 2:
			return submessage("start_battle", num, typ, b, &s.Attacker)
		case 3:
			return submessage("start_battle", num, typ, b, &s.Defender)
		}
		return -1, nil
	})
}

// BattleResult is the outcome of a one-shot battle.
type BattleResult struct {
	Duration       int64 // milliseconds
	Score          int64
	Winner         uint32
	Loser          uint32
	AttackerDamage int32
	DefenderDamage int32
}

func (r *BattleResult) Reset() { *r = BattleResult{} }

func (r *BattleResult) Append(b []byte) []byte {
	b = appendU32(b, 1, r.Winner)
	b = appendU32(b, 2, r.Loser)
	b = appendI32(b, 3, r.AttackerDamage)
	b = appendI32(b, 4, r.DefenderDamage)
	b = appendI64(b, 5, r.Duration)
	return appendI64(b, 6, r.Score)
}

func (r *BattleResult) Unmarshal(b []byte) error {
	r.Reset()
	return walk("battle_result", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32("battle_result", num, typ, b, &r.Winner)
		case 2:
			return u32("battle_result", num, typ, b, &r.Loser)
		case 3:
			return i32("battle_result", num, typ, b, &r.AttackerDamage)
		case 4:
			return i32("battle_result", num, typ, b, &r.DefenderDamage)
		case 5:
			return i64("battle_result", num, typ, b, &r.Duration)
		case 6:
			return i64("battle_result", num, typ, b, &r.Score)
		}
		return -1, nil
	})
}

// Event types recorded in a replay.
const (
	EventAttack = "attack"
	EventDefend = "defend"
	EventSkill  = "skill"
	EventEnd    = "end"
)

// BattleEvent is one step of a replay.
type BattleEvent struct {
	Type      string
	Timestamp int64
	Performer uint32
	Target    uint32
	Value     int32
}

func (e *BattleEvent) Reset() { *e = BattleEvent{} }

func (e *BattleEvent) Append(b []byte) []byte {
	b = appendI64(b, 1, e.Timestamp)
	b = appendString(b, 2, e.Type)
	b = appendU32(b, 3, e.Performer)
	b = appendU32(b, 4, e.Target)
	return appendI32(b, 5, e.Value)
}

func (e *BattleEvent) Unmarshal(b []byte) error {
	e.Reset()
	return walk("battle_event", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return i64("battle_event", num, typ, b, &e.Timestamp)
		case 2:
			return str("battle_event", num, typ, b, &e.Type)
		case 3:
			return u32("battle_event", num, typ, b, &e.Performer)
		case 4:
			return u32("battle_event", num, typ, b, &e.Target)
		case 5:
			return i32("battle_event", num, typ, b, &e.Value)
		}
		return -1, nil
	})
}

// BattleReplay is the full record of a finished battle.
type BattleReplay struct {
	Version  string
	Events   []BattleEvent
	Attacker Team
	Defender Team
	Result   BattleResult
	Start    int64
	End      int64
	BattleID uint32
}

func (r *BattleReplay) Reset() {
	events := r.Events[:0]
	*r = BattleReplay{Events: events}
}

func (r *BattleReplay) Append(b []byte) []byte {
	b = appendU32(b, 1, r.BattleID)
	b = appendI64(b, 2, r.Start)
	b = appendI64(b, 3, r.End)
	b = appendMessage(b, 4, r.Attacker.Append)
	b = appendMessage(b, 5, r.Defender.Append)
	b = appendMessage(b, 6, r.Result.Append)
	for i := range r.Events {
		b = appendMessage(b, 7, r.Events[i].Append)
	}
	return appendString(b, 8, r.Version)
}

func (r *BattleReplay) Unmarshal(b []byte) error {
	r.Reset()
	return walk("battle_replay", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32("battle_replay", num, typ, b, &r.BattleID)
		case 2:
			return i64("battle_replay", num, typ, b, &r.Start)
		case 3:
			return i64("battle_replay", num, typ, b, &r.End)
		case 4:
			return submessage("battle_replay", num, typ, b, &r.Attacker)
		case 5:
			return submessage("battle_replay", num, typ, b, &r.Defender)
		case 6:
			return submessage("battle_replay", num, typ, b, &r.Result)
		case 7:
			var ev BattleEvent
			n, err := submessage("battle_replay", num, typ, b, &ev)
			if err == nil {
				r.Events = append(r.Events, ev)
			}
			return n, err
		case 8:
			return str("battle_replay", num, typ, b, &r.Version)
		}
		return -1, nil
	})
}

// BattleResponse answers a StartBattle. Result holds an encoded
// BattleResult when Code is success.
type BattleResponse struct {
	Message   string
	Result    []byte
	Timestamp int64
	Code      int32
}

func (r *BattleResponse) Reset() {
	*r = BattleResponse{Result: r.Result[:0]}
}

func (r *BattleResponse) Append(b []byte) []byte {
	b = appendI32(b, 1, r.Code)
	b = appendString(b, 2, r.Message)
	b = appendBytes(b, 3, r.Result)
	return appendI64(b, 4, r.Timestamp)
}

func (r *BattleResponse) Unmarshal(b []byte) error {
	r.Reset()
	return walk("battle_response", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return i32("battle_response", num, typ, b, &r.Code)
		case 2:
			return str("battle_response", num, typ, b, &r.Message)
		case 3:
			return copyBytes("battle_response", num, typ, b, &r.Result)
		case 4:
			return i64("battle_response", num, typ, b, &r.Timestamp)
		}
		return -1, nil
	})
}

// BatchBattleRequest runs several battles in one call.
type BatchBattleRequest struct {
	BatchID string
	Battles []StartBattle
}

func (r *BatchBattleRequest) Reset() {
	*r = BatchBattleRequest{Battles: r.Battles[:0]}
}

func (r *BatchBattleRequest) Append(b []byte) []byte {
	b = appendString(b, 1, r.BatchID)
	for i := range r.Battles {
		b = appendMessage(b, 2, r.Battles[i].Append)
	}
	return b
}

func (r *BatchBattleRequest) Unmarshal(b []byte) error {
	r.Reset()
	return walk("batch_request", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return str("batch_request", num, typ, b, &r.BatchID)
		case 2:
			var s StartBattle
			n, err := submessage("batch_request", num, typ, b, &s)
			if err == nil {
				r.Battles = append(r.Battles, s)
			}
			return n, err
		}
		return -1, nil
	})
}

// BatchBattleResponse collects the results of a batch.
type BatchBattleResponse struct {
	BatchID       string
	Results       []BattleResult
	TotalDuration int64
	Success       int32
	Failure       int32
}

func (r *BatchBattleResponse) Reset() {
	*r = BatchBattleResponse{Results: r.Results[:0]}
}

func (r *BatchBattleResponse) Append(b []byte) []byte {
	b = appendString(b, 1, r.BatchID)
	for i := range r.Results {
		b = appendMessage(b, 2, r.Results[i].Append)
	}
	b = appendI32(b, 3, r.Success)
	b = appendI32(b, 4, r.Failure)
	return appendI64(b, 5, r.TotalDuration)
}

func (r *BatchBattleResponse) Unmarshal(b []byte) error {
	r.Reset()
	return walk("batch_response", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return str("batch_response", num, typ, b, &r.BatchID)
		case 2:
			var res BattleResult
			n, err := submessage("batch_response", num, typ, b, &res)
			if err == nil {
				r.Results = append(r.Results, res)
			}
			return n, err
		case 3:
			return i32("batch_response", num, typ, b, &r.Success)
		case 4:
			return i32("batch_response", num, typ, b, &r.Failure)
		case 5:
			return i64("batch_response", num, typ, b, &r.TotalDuration)
		}
		return -1, nil
	})
}

// NotificationType says what a Notification reports.
type NotificationType int32

const (
	NotificationUnknown NotificationType = iota
	NotificationBattleStarted
	NotificationBattleCompleted
	NotificationInstanceFinished
)

func (t NotificationType) String() string {
	switch t {
	case NotificationBattleStarted:
		return "battle_started"
	case NotificationBattleCompleted:
		return "battle_completed"
	case NotificationInstanceFinished:
		return "instance_finished"
	default:
		return "unknown"
	}
}

// Notification is pushed to the notify channel. Payload is an encoded
// BattleReplay for completed one-shot battles.
type Notification struct {
	Payload   []byte
	Timestamp int64
	Type      NotificationType
	BattleID  uint32
}

func (n *Notification) Reset() {
	*n = Notification{Payload: n.Payload[:0]}
}

func (n *Notification) Append(b []byte) []byte {
	b = appendU32(b, 1, n.BattleID)
	b = appendI32(b, 2, int32(n.Type))
	b = appendI64(b, 3, n.Timestamp)
	return appendBytes(b, 4, n.Payload)
}

func (n *Notification) Unmarshal(b []byte) error {
	n.Reset()
	return walk("notification", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32("notification", num, typ, b, &n.BattleID)
		case 2:
			var v int32
			m, err := i32("notification", num, typ, b, &v)
			n.Type = NotificationType(v)
			return m, err
		case 3:
			return i64("notification", num, typ, b, &n.Timestamp)
		case 4:
			return copyBytes("notification", num, typ, b, &n.Payload)
		}
		return -1, nil
	})
}

// Input actions.
const (
	ActionAttack uint32 = 0
	ActionDefend uint32 = 1
	ActionSkill  uint32 = 2
)

// BattleInput is a player action on a running instance.
type BattleInput struct {
	BattleID    uint32
	TeamID      uint32
	ActionType  uint32
	ActionValue int32
}

func (in *BattleInput) Reset() { *in = BattleInput{} }

func (in *BattleInput) Append(b []byte) []byte {
	b = appendU32(b, 1, in.BattleID)
	b = appendU32(b, 2, in.TeamID)
	b = appendU32(b, 3, in.ActionType)
	return appendI32(b, 4, in.ActionValue)
}

func (in *BattleInput) Unmarshal(b []byte) error {
	in.Reset()
	return walk("battle_input", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32("battle_input", num, typ, b, &in.BattleID)
		case 2:
			return u32("battle_input", num, typ, b, &in.TeamID)
		case 3:
			return u32("battle_input", num, typ, b, &in.ActionType)
		case 4:
			return i32("battle_input", num, typ, b, &in.ActionValue)
		}
		return -1, nil
	})
}
