// Command fwcheck verifies that client hosts can reach the servers of each
// environment on the ports they need.
//
// Usage:
//
//	fwcheck -config plan.yaml [-mode local|ssh|nmap]
//
// Exit status is 0 when every check passed, 2 when any failed and 1 when the
// run itself could not complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hostdrift/internal/probe"
	"hostdrift/internal/report"
)

// Prober modes
const (
	modeLocal = "local"
	modeSSH   = "ssh"
	modeNmap  = "nmap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("fwcheck", flag.ContinueOnError)
	var (
		planPath string
		mode     string
		jsonPath string
		htmlPath string
		skipPing bool
		verbose  bool
	)
	fs.StringVar(&planPath, "config", "plan.yaml", "check plan")
	fs.StringVar(&mode, "mode", modeSSH, "prober: local, ssh or nmap")
	fs.StringVar(&jsonPath, "json", "", "JSON results path (default from plan)")
	fs.StringVar(&htmlPath, "html", "", "HTML report path (default from plan, \"-\" disables)")
	fs.BoolVar(&skipPing, "Pn", false, "nmap: skip host discovery")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	plan, err := probe.LoadPlan(planPath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	if err := plan.Validate(mode == modeSSH); err != nil {
		log.Printf("Error: invalid plan %s: %v", planPath, err)
		return 1
	}
	if jsonPath != "" {
		plan.OutputJSON = jsonPath
	}
	switch htmlPath {
	case "":
	case "-":
		plan.OutputHTML = ""
	default:
		plan.OutputHTML = htmlPath
	}

	prober, closeFn, err := newProber(ctx, mode, skipPing)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	defer closeFn()

	runner, err := probe.DescribeRunner(ctx)
	if err != nil {
		log.Printf("Warning: runner info: %v", err)
	} else if mode == modeNmap && !runner.Root && plan.HasUDP() {
		log.Printf("Warning: nmap UDP scans need root; UDP checks will report errors")
	}

	rep := probe.Run(ctx, prober, plan.Checks(), plan.Workers)
	rep.Runner = runner
	if err := ctx.Err(); err != nil {
		log.Printf("Error: interrupted: %v", err)
		return 1
	}

	if err := report.Save(plan.OutputJSON, func(w io.Writer) error { return report.WriteJSON(w, rep) }); err != nil {
		log.Printf("Error: write json results: %v", err)
		return 1
	}
	log.Printf("JSON results written to %s", plan.OutputJSON)
	if plan.OutputHTML != "" {
		if err := report.Save(plan.OutputHTML, func(w io.Writer) error { return report.WriteProbeHTML(w, rep) }); err != nil {
			log.Printf("Error: write html report: %v", err)
			return 1
		}
		log.Printf("HTML report written to %s", plan.OutputHTML)
	}

	if err := report.WriteProbeText(stdout, rep); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return rep.ExitCode()
}

// newProber builds the prober for mode and the function releasing it
func newProber(ctx context.Context, mode string, skipPing bool) (probe.Prober, func(), error) {
	switch mode {
	case modeLocal:
		return probe.NewLocalProber(), func() {}, nil
	case modeSSH:
		p := probe.NewSSHProber()
		return p, func() {
			if err := p.Close(); err != nil {
				log.Printf("ssh: close: %v", err)
			}
		}, nil
	case modeNmap:
		p := probe.NewNmapProber(probe.WithSkipHostDiscovery(skipPing))
		if !p.Available(ctx) {
			return nil, nil, fmt.Errorf("nmap mode needs the nmap binary on PATH")
		}
		return p, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown mode %q (want %s, %s or %s)", mode, modeLocal, modeSSH, modeNmap)
	}
}
