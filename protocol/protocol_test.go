package protocol

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
)

func sampleReplay() *BattleReplay {
	return &BattleReplay{
		BattleID: 7,
		Start:    1700000000000,
		End:      1700000000042,
		Attacker: Team{TeamID: 1, Name: "red"},
		Defender: Team{TeamID: 2, Name: "blue"},
		Result: BattleResult{
			Winner: 1, Loser: 2,
			AttackerDamage: 75, DefenderDamage: 120,
			Duration: 42, Score: 1200,
		},
		Events: []BattleEvent{
			{Timestamp: 1700000000001, Type: EventAttack, Performer: 1, Target: 2, Value: 40},
			{Timestamp: 1700000000042, Type: EventEnd, Performer: 1, Target: 2, Value: 1},
		},
		Version: "1.0",
	}
}

func TestBattleReplay_RoundTrip(t *testing.T) {
	want := sampleReplay()
	var got BattleReplay
	if err := got.Unmarshal(want.Append(nil)); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, *want)
	}
}

func TestEnvelope_NestedRoundTrip(t *testing.T) {
	batch := &BatchBattleRequest{
		BatchID: "b-1",
		Battles: []StartBattle{
			{BattleID: 1, Attacker: Team{TeamID: 10}, Defender: Team{TeamID: 20}},
			{BattleID: 2, Attacker: Team{TeamID: 30, Name: "x"}, Defender: Team{TeamID: 40}},
		},
	}
	env := Wrap(KindBatchRequest, batch)

	var decoded Envelope
	if err := decoded.Unmarshal(env.Marshal()); err != nil {
		t.Fatal(err)
	}
	if decoded.Kind != KindBatchRequest {
		t.Fatalf("Kind = %v", decoded.Kind)
	}
	var got BatchBattleRequest
	if err := got.Unmarshal(decoded.Payload); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&got, batch) {
		t.Errorf("got %+v, want %+v", got, *batch)
	}
}

func TestNegativeValues(t *testing.T) {
	in := BattleInput{BattleID: 3, TeamID: 1, ActionType: ActionSkill, ActionValue: -25}
	var got BattleInput
	if err := got.Unmarshal(in.Append(nil)); err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("got %+v, want %+v", got, in)
	}

	env := ErrorEnvelope(bridgeerrors.InvalidFormat(bridgeerrors.PhaseDecode, "bad", nil))
	var dec Envelope
	if err := dec.Unmarshal(env.Marshal()); err != nil {
		t.Fatal(err)
	}
	if dec.Code != bridgeerrors.StatusInvalidFormat {
		t.Errorf("Code = %v", dec.Code)
	}
}

func TestEnvelope_Err(t *testing.T) {
	ok := &Envelope{Kind: KindBattleResponse}
	if ok.Err() != nil {
		t.Error("non-error envelope returned an error")
	}
	env := &Envelope{Kind: KindError, Code: bridgeerrors.StatusNotFound, Message: "gone"}
	if err := env.Err(); !errors.Is(err, bridgeerrors.ErrNotFound) {
		t.Errorf("Err = %v", err)
	}
	blank := &Envelope{Kind: KindError}
	if err := blank.Err(); !errors.Is(err, bridgeerrors.ErrInternal) {
		t.Errorf("Err = %v, want internal", err)
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = (&Team{TeamID: 5, Name: "five"}).Append(b)
	b = protowire.AppendTag(b, 100, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)

	var got Team
	if err := got.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if got.TeamID != 5 || got.Name != "five" {
		t.Errorf("got %+v", got)
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated tag", []byte{0x80}},
		{"truncated length", []byte{0x12, 0x05, 'a'}},
		{"wrong wire type", protowire.AppendVarint(protowire.AppendTag(nil, 2, protowire.VarintType), 1)},
		{"field zero", []byte{0x00, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			err := env.Unmarshal(tt.data)
			if !errors.Is(err, bridgeerrors.ErrInvalidFormat) {
				t.Errorf("Unmarshal = %v, want invalid_format", err)
			}
		})
	}
}

func TestReset_KeepsCapacity(t *testing.T) {
	n := &Notification{Payload: make([]byte, 4, 64), Type: NotificationBattleCompleted, BattleID: 9}
	n.Reset()
	if len(n.Payload) != 0 || cap(n.Payload) != 64 || n.BattleID != 0 || n.Type != NotificationUnknown {
		t.Errorf("Reset = %+v cap %d", n, cap(n.Payload))
	}
}

func TestKind_String(t *testing.T) {
	if KindStartBattle.String() != "start_battle" || Kind(42).String() != "kind(42)" {
		t.Errorf("String = %q / %q", KindStartBattle.String(), Kind(42).String())
	}
	if NotificationInstanceFinished.String() != "instance_finished" {
		t.Error("NotificationType.String mismatch")
	}
}
