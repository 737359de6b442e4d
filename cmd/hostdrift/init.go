package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"hostdrift/internal/config"
)

// runInit writes a default config file for the user to edit
func runInit(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var (
		path  string
		force bool
	)
	fs.StringVar(&path, "config", "", "where to write the config (default "+config.DefaultConfigPath()+")")
	fs.BoolVar(&force, "force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		log.Printf("Error: %s already exists (use -force to overwrite)", path)
		return 1
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return 0
}
