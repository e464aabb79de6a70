package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/router"
)

var exampleUsage = strings.TrimSpace(`
  bridge console
  bridge demo --resource-dir ./config --resource battle.toml
  bridge run guest.wasm --export run --wasi
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type flags struct {
	configPath  string
	logLevel    string
	resourceDir string
	seed        uint64
}

// loadConfig reads defaults, the config file and the environment, then
// applies the flags the user set explicitly.
func (f *flags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	changed := map[string]bool{}
	cmd.Flags().Visit(func(fl *pflag.Flag) { changed[fl.Name] = true })
	if changed["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if changed["resource-dir"] {
		cfg.ResourceDir = f.resourceDir
	}
	if changed["seed"] {
		cfg.Seed = f.seed
	}
	return cfg, cfg.Validate()
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:           "bridge",
		Short:         "Exercise the wasm-bridge boundary entry points",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "TOML config file")
	pf.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error, none")
	pf.StringVar(&f.resourceDir, "resource-dir", "", "directory served on the resource.loader channel")
	pf.Uint64Var(&f.seed, "seed", 0, "battle RNG seed (0 picks one)")

	var resource string
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted session over the loopback peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := newSession(cfg, router.WithOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer s.Close()
			return runDemo(cmd.Context(), s, cmd.OutOrStdout(), resource)
		},
	}
	demo.Flags().StringVar(&resource, "resource", "battle.toml", "resource name requested by load_resource")

	console := &cobra.Command{
		Use:   "console",
		Short: "Call entry points interactively; falls back to demo without a terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				s, err := newSession(cfg, router.WithOutput(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				defer s.Close()
				return runDemo(cmd.Context(), s, cmd.OutOrStdout(), resource)
			}
			// The TUI owns the terminal; logs go nowhere.
			cfg.LogLevel = "none"
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			return runConsole(s)
		},
	}
	console.Flags().StringVar(&resource, "resource", "battle.toml", "resource name requested by load_resource in the fallback demo")

	var export string
	var wasi bool
	run := &cobra.Command{
		Use:   "run <module.wasm>",
		Short: "Instantiate a guest module against the host module and call one export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runGuest(cmd, cfg, args[0], export, wasi)
		},
	}
	run.Flags().StringVar(&export, "export", "run", "export to call with no arguments")
	run.Flags().BoolVar(&wasi, "wasi", false, "instantiate wasi_snapshot_preview1")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the host entry point catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, e := range router.Catalogue() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-60s %s\n", formatEntry(e), e.Doc)
			}
			return nil
		},
	}

	root.AddCommand(demo, console, run, list)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runGuest(cmd *cobra.Command, cfg config.Config, path, export string, wasi bool) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	r, err := router.New(cfg, router.WithOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer r.Close()
	engine.SetLogger(r.Logger().Named("engine"))

	e, err := engine.New(ctx, r, &engine.Config{EnableWASI: wasi})
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	peer, err := e.Instantiate(ctx, "guest", data)
	if err != nil {
		return err
	}
	r.Attach(peer)

	fn := peer.Export(export)
	if fn == nil {
		return fmt.Errorf("module does not export %q", export)
	}
	res, err := fn.Call(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", export, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s => %v\n", export, decodeResults(res))
	fmt.Fprintf(cmd.OutOrStdout(), "instances %d, outstanding resource blocks %d\n",
		r.InstanceCount(), r.Outstanding(peer))
	return nil
}

func decodeResults(res []uint64) []int32 {
	out := make([]int32, len(res))
	for i, v := range res {
		out[i] = api.DecodeI32(v)
	}
	return out
}
