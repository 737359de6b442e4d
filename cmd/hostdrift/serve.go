package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"hostdrift/internal/config"
	"hostdrift/internal/domain"
	"hostdrift/internal/handler"
	"hostdrift/internal/hub"
	"hostdrift/internal/repository"
	"hostdrift/internal/watcher"
)

func runServe(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var (
		flags   compareFlags
		addr    string
		watch   bool
		every   time.Duration
		verbose bool
	)
	flags.register(fs)
	fs.StringVar(&addr, "addr", "", "HTTP listen address (default from config, "+config.DefaultServerAddr+")")
	fs.BoolVar(&watch, "watch", false, "run a comparison at startup and whenever the config or snapshot files change")
	fs.DurationVar(&every, "every", 0, "also run a comparison at this interval")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	setupLogging(verbose)

	cfg, cfgPath, err := loadConfig(flags.configPath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	flags.apply(cfg)
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if cfg.History.DSN == "" {
		log.Printf("Error: %v", domain.NewConfigurationError(domain.ErrMissingSetting, "history.dsn", nil,
			"serve needs a history database: set history.dsn, -history or HOSTDRIFT_HISTORY_DSN"))
		return 1
	}
	if watch || every > 0 {
		if err := cfg.Validate(); err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
	}

	store, err := repository.Open(ctx, cfg.History.DSN)
	if err != nil {
		log.Printf("Error: open history: %v", err)
		return 1
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := hub.New()
	go events.Run(ctx)

	h := handler.New(store)
	h.SetEvents(events)

	// Runs triggered by the watcher and the ticker never overlap
	var runMu sync.Mutex
	trigger := func(reason string) {
		runMu.Lock()
		defer runMu.Unlock()
		log.Printf("Running comparison (%s)", reason)
		cfg, _, err := flags.prepare()
		if err != nil {
			log.Printf("Error: %v", err)
			return
		}
		rep, err := compareOnce(ctx, cfg, store, flags.saveSnapshot, stdout)
		if err != nil {
			log.Printf("Error: run failed: %v", err)
			return
		}
		events.PublishRun(rep)
	}

	var wg sync.WaitGroup
	if watch {
		trigger("startup")
		w := watcher.New(watchPaths(cfgPath, cfg), func(changed []string) { trigger("files changed") })
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
	}
	if every > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					trigger("every " + every.String())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// No write timeout: event streams stay open
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Router(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			log.Printf("Error: server: %v", err)
			code = 1
		}
	}

	log.Println("Shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	wg.Wait()
	log.Println("Server stopped")
	return code
}
