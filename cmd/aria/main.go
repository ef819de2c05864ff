// aria launches a named agent configuration: speech in, a language
// model with function calling in the middle, speech out.
//
//	aria [flags] <agent_name>
//
// Exit is non-zero only for unresolvable configuration or an
// unrecoverable adapter failure; degraded-but-running backends keep
// the process alive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lumenrobotics/go-aria/internal/config"
	"github.com/lumenrobotics/go-aria/internal/log"
	"github.com/lumenrobotics/go-aria/pkg/aria"
	"github.com/lumenrobotics/go-aria/pkg/registry"
)

func main() {
	cfg, env := parseFlags()

	reg := registry.NewRegistry()
	if err := registry.RegisterBuiltins(reg, env); err != nil {
		stdlog.Fatalf("❌ Built-in agents: %v", err)
	}
	if err := reg.LoadDir(env.AgentsDir); err != nil {
		stdlog.Fatalf("❌ Loading agents from %s: %v", env.AgentsDir, err)
	}

	app, err := aria.New(cfg, reg)
	if err != nil {
		if errors.Is(err, registry.ErrConfigNotFound) {
			stdlog.Fatalf("❌ Unknown agent %q. Available: %v", cfg.AgentName, reg.Names())
		}
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}

	if err := app.Init(); err != nil {
		stdlog.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		stdlog.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags parses the command line and loads the environment snapshot.
// The .env file is best-effort; a missing file is not an error.
func parseFlags() (aria.Config, config.Env) {
	cfg := aria.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	text := flag.Bool("text", false, "Console input only, skip the microphone")
	dashboard := flag.Bool("dashboard", cfg.Dashboard, "Serve the web debug dashboard")
	dashboardPort := flag.String("dashboard-port", "", "Dashboard port (overrides DASHBOARD_PORT)")
	agentsDir := flag.String("agents-dir", "", "Agent config directory (overrides AGENTS_DIR)")
	memoryPath := flag.String("memory", "", "Memory JSON file path")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <agent_name>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	godotenv.Load()
	env := config.LoadEnv()
	if *dashboardPort != "" {
		env.DashboardPort = *dashboardPort
	}
	if *agentsDir != "" {
		env.AgentsDir = *agentsDir
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	cfg.AgentName = flag.Arg(0)
	cfg.Debug = *debug
	cfg.TextOnly = *text
	cfg.Dashboard = *dashboard
	cfg.MemoryPath = *memoryPath
	cfg.Env = env
	return cfg, env
}
