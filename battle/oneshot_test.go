package battle

import (
	"context"
	"errors"
	"testing"

	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/protocol"
)

func startReq(id, atk, def uint32) *protocol.StartBattle {
	return &protocol.StartBattle{
		BattleID: id,
		Attacker: protocol.Team{TeamID: atk, Name: "atk"},
		Defender: protocol.Team{TeamID: def, Name: "def"},
	}
}

func TestExecute(t *testing.T) {
	var c captured
	m := fixed(300, 30, WithNotifier(c.notifier))

	res, err := m.Execute(context.Background(), startReq(5, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	// equal damage leaves equal health, the defender takes ties
	want := protocol.BattleResult{
		Winner: 2, Loser: 1,
		AttackerDamage: 90, DefenderDamage: 90,
		Score: 900,
	}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	if len(c.notes) != 1 || c.notes[0].Type != protocol.NotificationBattleCompleted {
		t.Fatalf("notifications = %+v", c.notes)
	}
	var replay protocol.BattleReplay
	if err := replay.Unmarshal(c.notes[0].Payload); err != nil {
		t.Fatal(err)
	}
	if replay.BattleID != 5 || replay.Version != ReplayVersion || replay.Result != want {
		t.Errorf("replay = %+v", replay)
	}
	if len(replay.Events) != 2*OneShotRounds+1 {
		t.Fatalf("events = %d", len(replay.Events))
	}
	last := replay.Events[len(replay.Events)-1]
	if last.Type != protocol.EventEnd || last.Performer != 2 {
		t.Errorf("end event = %+v", last)
	}
}

func TestExecute_InvalidRequest(t *testing.T) {
	m := fixed(300, 30)
	for _, req := range []*protocol.StartBattle{
		startReq(1, 0, 2),
		startReq(1, 2, 0),
		startReq(1, 3, 3),
	} {
		if _, err := m.Execute(context.Background(), req); !errors.Is(err, bridgeerrors.ErrInvalidArgument) {
			t.Errorf("Execute(%+v) = %v", req, err)
		}
	}
}

func TestExecuteBatch(t *testing.T) {
	var c captured
	m := fixed(300, 40, WithNotifier(c.notifier))
	req := &protocol.BatchBattleRequest{
		BatchID: "batch-1",
		Battles: []protocol.StartBattle{*startReq(1, 1, 2), *startReq(2, 0, 2), *startReq(3, 3, 4)},
	}

	resp := m.ExecuteBatch(context.Background(), req)
	if resp.BatchID != "batch-1" || resp.Success != 2 || resp.Failure != 1 || len(resp.Results) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if len(c.notes) != 2 {
		t.Errorf("notifications = %d, want 2", len(c.notes))
	}
}

func TestParseSettings(t *testing.T) {
	base := DefaultSettings()
	tests := []struct {
		name string
		doc  string
		want Settings
		err  error
	}{
		{"overlay", "initial_health = 500\nmax_damage = 60\n", Settings{500, 20, 60}, nil},
		{"empty", "", base, nil},
		{"malformed", "initial_health = [", base, bridgeerrors.ErrInvalidFormat},
		{"invalid range", "min_damage = 70\n", base, bridgeerrors.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettings([]byte(tt.doc), base)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("err = %v, want %v", err, tt.err)
				}
			} else if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("settings = %+v, want %+v", got, tt.want)
			}
		})
	}
}
