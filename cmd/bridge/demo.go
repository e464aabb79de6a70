package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/router"
)

type step struct {
	name string
	args []string
}

func demoScript(resource string) []step {
	start := protocol.Wrap(protocol.KindStartBattle, &protocol.StartBattle{
		BattleID: 100,
		Attacker: protocol.Team{TeamID: 1, Name: "red"},
		Defender: protocol.Team{TeamID: 2, Name: "blue"},
	}).Marshal()
	batch := protocol.Wrap(protocol.KindBatchRequest, &protocol.BatchBattleRequest{
		BatchID: "demo",
		Battles: []protocol.StartBattle{
			{BattleID: 101, Attacker: protocol.Team{TeamID: 1}, Defender: protocol.Team{TeamID: 2}},
			{BattleID: 102, Attacker: protocol.Team{TeamID: 3}, Defender: protocol.Team{TeamID: 4}},
			{BattleID: 103, Attacker: protocol.Team{TeamID: 5}, Defender: protocol.Team{TeamID: 5}},
		},
	}).Marshal()
	input := protocol.Wrap(protocol.KindBattleInput, &protocol.BattleInput{
		BattleID: 3, TeamID: 20, ActionType: protocol.ActionDefend,
	}).Marshal()

	return []step{
		{"register_callback", []string{router.NotifyChannel, "on_notify"}},
		{"init_exception_context", []string{"on_fault", "", ""}},
		{"create_instance", []string{"1", "10", "20"}},
		{"create_instance", []string{"2", "30", "40"}},
		{"create_instance", []string{"1", "10", "20"}},
		{"instance_count", nil},
		{"process_message", []string{hex.EncodeToString(start), "", ""}},
		{"process_batch", []string{hex.EncodeToString(batch), "", ""}},
		{"process_message", []string{"ff", "", ""}},
		{"create_instance", []string{"3", "10", "20"}},
		{"process_input", []string{"3", "10", "2", "15"}},
		{"process_input_message", []string{hex.EncodeToString(input)}},
		{"process_input", []string{"3", "10", "9", "0"}},
		{"load_resource", []string{resource, "", ""}},
		{"raise_fault", []string{"demo fault"}},
		{"set_log_level", []string{"7"}},
		{"set_log_level", []string{"2"}},
		{"get_log_level", nil},
		{"destroy_instance", []string{"2"}},
		{"destroy_instance", []string{"2"}},
	}
}

// runDemo runs a scripted session and prints every call with the events
// it produced.
func runDemo(ctx context.Context, s *session, w io.Writer, resource string) error {
	for _, st := range demoScript(resource) {
		if _, err := demoCall(ctx, s, w, st); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nticking until every instance finishes")
	for i := 0; i < 100; i++ {
		res, err := demoCall(ctx, s, w, step{name: "tick"})
		if err != nil {
			return err
		}
		if res == "0" {
			break
		}
	}
	return nil
}

func demoCall(ctx context.Context, s *session, w io.Writer, st step) (string, error) {
	e, ok := router.Lookup(st.name)
	if !ok {
		return "", fmt.Errorf("unknown entry point %q", st.name)
	}
	c, err := s.prepare(e, st.args)
	if err != nil {
		return "", err
	}
	res, err := s.run(ctx, c)
	if err != nil {
		return "", err
	}

	shown := make([]string, len(st.args))
	for i, a := range st.args {
		if len(a) > 16 {
			a = a[:16] + "…"
		}
		shown[i] = a
	}
	fmt.Fprintf(w, "%s(%s) => %s\n", st.name, strings.Join(shown, ", "), res)
	for _, ev := range s.drain() {
		fmt.Fprintf(w, "    • %s\n", ev)
	}
	return res, nil
}
