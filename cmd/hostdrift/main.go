// Command hostdrift compares ESXi hosts in vCenter with their NetBox device
// records and reports drift.
//
// Usage:
//
//	hostdrift [compare] [flags]   run one comparison (exit 0 clean, 2 drift, 1 failed)
//	hostdrift history [flags]     list stored runs, one host's history, or prune
//	hostdrift serve [flags]       browse stored runs over HTTP
//	hostdrift init [flags]        write a default config file
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hostdrift/internal/config"
)

const usage = `Usage: hostdrift <command> [flags]

Commands:
  compare   compare vCenter hosts with NetBox devices (default)
  history   list stored runs or one host's history
  serve     serve stored runs over HTTP
  init      write a default config file

Run "hostdrift <command> -h" for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code
func run(ctx context.Context, args []string, stdout io.Writer) int {
	cmd := "compare"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "compare":
		return runCompare(ctx, args, stdout)
	case "history":
		return runHistory(ctx, args, stdout)
	case "serve":
		return runServe(ctx, args, stdout)
	case "init":
		return runInit(args, stdout)
	case "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 1
	}
}

// setupLogging matches the server defaults; -v adds file and line
func setupLogging(verbose bool) {
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)
}

// loadConfig reads the config file (explicit or discovered) and overlays the environment
func loadConfig(path string) (*config.Config, string, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, path, err = config.LoadFromPath(path)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnvFromOS(); err != nil {
		return nil, path, err
	}
	if path != "" {
		log.Printf("Config loaded from %s", path)
	}
	return cfg, path, nil
}
