package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/router"
)

func testSession(t *testing.T) *session {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 3
	s, err := newSession(cfg, router.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runStep(t *testing.T, s *session, name string, args ...string) string {
	t.Helper()
	e, ok := router.Lookup(name)
	if !ok {
		t.Fatalf("no entry point %s", name)
	}
	c, err := s.prepare(e, args)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestSession_Prepare(t *testing.T) {
	s := testSession(t)
	e, _ := router.Lookup("create_instance")

	tests := []struct {
		name string
		args []string
		ok   bool
	}{
		{"valid", []string{"1", "2", "3"}, true},
		{"arity", []string{"1", "2"}, false},
		{"not a number", []string{"1", "x", "3"}, false},
		{"missing value", []string{"1", "", "3"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.prepare(e, tt.args)
			if (err == nil) != tt.ok {
				t.Errorf("prepare err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSession_RunReleasesBlocks(t *testing.T) {
	s := testSession(t)
	before := s.peer.Heap().Live()
	runStep(t, s, "register_callback", "events", "on_notify")
	runStep(t, s, "process_message", "ff", "", "")
	if got := s.peer.Heap().Live(); got != before {
		t.Errorf("live blocks = %d, want %d", got, before)
	}
}

func TestSession_Notifications(t *testing.T) {
	s := testSession(t)
	if got := runStep(t, s, "register_callback", router.NotifyChannel, "on_notify"); !strings.HasPrefix(got, "status 0") {
		t.Fatalf("register_callback = %s", got)
	}
	got := runStep(t, s, "process_message", "", "", "")
	if !strings.Contains(got, "error") {
		t.Errorf("empty request = %s", got)
	}

	runStep(t, s, "create_instance", "1", "10", "20")
	for i := 0; i < 100; i++ {
		if runStep(t, s, "tick") == "0" {
			break
		}
	}
	events := s.drain()
	if len(events) != 1 || !strings.Contains(events[0], "battle 1 instance_finished") {
		t.Errorf("events = %q", events)
	}
}

func TestSession_Fault(t *testing.T) {
	s := testSession(t)
	runStep(t, s, "init_exception_context", "on_fault", "", "")
	got := runStep(t, s, "raise_fault", "boom")
	if !strings.Contains(got, "internal") {
		t.Errorf("raise_fault = %s", got)
	}
	events := s.drain()
	if len(events) != 1 || !strings.Contains(events[0], "boom") {
		t.Errorf("events = %q", events)
	}
}

func TestRunDemo(t *testing.T) {
	s := testSession(t)
	var out bytes.Buffer
	if err := runDemo(context.Background(), s, &out, "battle.toml"); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{
		"register_callback(battle.notify, on_notify) => status 0 (success)",
		"create_instance(1, 10, 20) => status -2 (already_exists)",
		"process_message(ff, , ) => status -3 (invalid_format)",
		"load_resource(battle.toml, , ) => status -5 (unavailable)",
		"set_log_level(7) => status -4 (invalid_argument)",
		"get_log_level() => 2",
		"destroy_instance(2) => status -1 (not_found)",
		"battle response: winner",
		"batch demo: 2 succeeded, 1 failed",
		"instance_finished",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("demo output missing %q\n%s", want, text)
		}
	}
}
