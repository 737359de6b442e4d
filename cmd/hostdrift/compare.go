package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"hostdrift/internal/adapter"
	"hostdrift/internal/codec"
	"hostdrift/internal/config"
	"hostdrift/internal/domain"
	"hostdrift/internal/reconcile"
	"hostdrift/internal/report"
	"hostdrift/internal/repository"
	"hostdrift/internal/watcher"
)

// compareFlags are the command-line overrides shared by compare and serve -watch
type compareFlags struct {
	configPath   string
	mode         string
	liveFile     string
	cmdbFile     string
	html         string
	json         string
	history      string
	saveSnapshot string
	allowPartial bool
}

func (f *compareFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "config file (default: discovered)")
	fs.StringVar(&f.mode, "mode", "", "name match mode: short, fqdn or lowercase")
	fs.StringVar(&f.liveFile, "live-file", "", "read live hosts from a YAML/JSON snapshot instead of vCenter")
	fs.StringVar(&f.cmdbFile, "cmdb-file", "", "read CMDB devices from a YAML/JSON snapshot instead of NetBox")
	fs.StringVar(&f.html, "html", "", "HTML report path (\"-\" disables)")
	fs.StringVar(&f.json, "json", "", "JSON report path")
	fs.StringVar(&f.history, "history", "", "run history: SQLite path or postgres:// URL")
	fs.StringVar(&f.saveSnapshot, "save-snapshot", "", "write the fetched hosts and devices to this YAML/JSON file")
	fs.BoolVar(&f.allowPartial, "allow-partial", false, "drop objects that fail to fetch and mark the report partial")
}

// apply overlays flags that were given onto cfg
func (f *compareFlags) apply(cfg *config.Config) {
	if f.mode != "" {
		cfg.Match.Mode = f.mode
	}
	if f.liveFile != "" {
		cfg.Sources.Live = config.SourceFile
		cfg.Sources.LiveFile = f.liveFile
	}
	if f.cmdbFile != "" {
		cfg.Sources.CMDB = config.SourceFile
		cfg.Sources.CMDBFile = f.cmdbFile
	}
	switch f.html {
	case "":
	case "-":
		cfg.Output.HTML = ""
	default:
		cfg.Output.HTML = f.html
	}
	if f.json != "" {
		cfg.Output.JSON = f.json
	}
	if f.history != "" {
		cfg.History.DSN = f.history
	}
	if f.allowPartial {
		cfg.AllowPartial = true
	}
}

// prepare loads, overlays and validates the configuration
func (f *compareFlags) prepare() (*config.Config, string, error) {
	cfg, path, err := loadConfig(f.configPath)
	if err != nil {
		return nil, path, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// watchPaths lists the files whose change should trigger a new run
func watchPaths(cfgPath string, cfg *config.Config) []string {
	var paths []string
	if cfgPath != "" {
		paths = append(paths, cfgPath)
	}
	if cfg.Sources.Live == config.SourceFile {
		paths = append(paths, cfg.Sources.LiveFile)
	}
	if cfg.Sources.CMDB == config.SourceFile && cfg.Sources.CMDBFile != cfg.Sources.LiveFile {
		paths = append(paths, cfg.Sources.CMDBFile)
	}
	return paths
}

func runCompare(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	var (
		flags   compareFlags
		watch   bool
		verbose bool
	)
	flags.register(fs)
	fs.BoolVar(&watch, "watch", false, "re-run whenever the config or snapshot files change")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	setupLogging(verbose)

	cfg, cfgPath, err := flags.prepare()
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	if verbose {
		log.Printf("Settings:\n%s", cfg.Summary())
	}

	store, err := openHistory(ctx, cfg.History.DSN)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	if store != nil {
		defer store.Close()
	}

	rep, err := compareOnce(ctx, cfg, store, flags.saveSnapshot, stdout)
	code := exitCode(rep, err)
	if !watch {
		return code
	}

	// Watch serializes onChange and waits for it, so code and store are safe here
	w := watcher.New(watchPaths(cfgPath, cfg), func(changed []string) {
		cfg, _, err := flags.prepare()
		if err != nil {
			log.Printf("Error: %v (keeping previous result)", err)
			code = 1
			return
		}
		rep, err := compareOnce(ctx, cfg, store, flags.saveSnapshot, stdout)
		code = exitCode(rep, err)
	})
	if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Error: %v", err)
		return 1
	}
	return code
}

// openHistory opens the run history, or returns nil when dsn is empty
func openHistory(ctx context.Context, dsn string) (repository.History, error) {
	if dsn == "" {
		return nil, nil
	}
	store, err := repository.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// buildSources creates the collaborators selected by cfg
func buildSources(cfg *config.Config) (adapter.LiveSource, adapter.CMDBSource) {
	var (
		live adapter.LiveSource
		cmdb adapter.CMDBSource
	)
	switch cfg.Sources.Live {
	case config.SourceFile:
		live = &adapter.FileLiveSource{Path: cfg.Sources.LiveFile}
	default:
		live = adapter.NewVSphereSource(cfg.VCenter.Host, cfg.VCenter.User, cfg.VCenter.Password,
			adapter.WithVerifySSL(cfg.VCenter.VerifySSL),
			adapter.WithVSphereTimeout(cfg.Timeout.Duration()),
		)
	}
	switch cfg.Sources.CMDB {
	case config.SourceFile:
		cmdb = &adapter.FileCMDBSource{Path: cfg.Sources.CMDBFile}
	default:
		nb := cfg.NetBox
		cmdb = adapter.NewNetBoxSource(nb.URL, nb.Token,
			adapter.WithRoleSlug(nb.RoleSlug),
			adapter.WithSiteSlug(nb.SiteSlug),
			adapter.WithCustomFields(nb.CustomFields.CPUCores, nb.CustomFields.RAMGB, nb.CustomFields.Datastores),
			adapter.WithWorkers(nb.Workers),
			adapter.WithPageSize(nb.PageSize),
			adapter.WithTLSVerify(nb.VerifiesSSL()),
		)
	}
	return live, cmdb
}

// compareOnce fetches both inventories, reconciles them and writes every output
func compareOnce(ctx context.Context, cfg *config.Config, store repository.History, snapshotPath string, stdout io.Writer) (*domain.Report, error) {
	live, cmdb := buildSources(cfg)

	snaps, err := adapter.Fetch(ctx, live, cmdb, cfg.AllowPartial)
	if err != nil {
		return nil, err
	}
	if snapshotPath != "" {
		if err := codec.SaveSnapshot(snapshotPath, &codec.Snapshot{Hosts: snaps.Hosts, Devices: snaps.Devices}); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		log.Printf("Snapshot written to %s", snapshotPath)
	}

	engine := reconcile.NewEngine(reconcile.Options{Mode: cfg.MatchMode(), Aliases: cfg.Aliases()})
	rep, err := engine.RunPartial(snaps.Hosts, snaps.Devices, snaps.Failures())
	if err != nil {
		return nil, err
	}
	rep.Partial = rep.Partial || snaps.Partial

	if cfg.Output.HTML != "" {
		if err := report.Save(cfg.Output.HTML, func(w io.Writer) error { return report.WriteHTML(w, rep) }); err != nil {
			return nil, fmt.Errorf("write html report: %w", err)
		}
		log.Printf("HTML report written to %s", cfg.Output.HTML)
	}
	if cfg.Output.JSON != "" {
		if err := report.Save(cfg.Output.JSON, func(w io.Writer) error { return report.WriteJSON(w, rep) }); err != nil {
			return nil, fmt.Errorf("write json report: %w", err)
		}
		log.Printf("JSON report written to %s", cfg.Output.JSON)
	}

	if store != nil {
		if err := store.SaveRun(ctx, rep); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		if retention := cfg.History.Retention.Duration(); retention > 0 {
			n, err := store.PruneBefore(ctx, rep.GeneratedAt.Add(-retention))
			if err != nil {
				log.Printf("Warning: prune history: %v", err)
			} else if n > 0 {
				log.Printf("Pruned %d runs older than %s", n, retention)
			}
		}
	}

	if err := report.WriteText(stdout, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// exitCode maps a run outcome to the process exit code
func exitCode(rep *domain.Report, err error) int {
	if err != nil {
		if domain.IsConfigurationError(err) {
			log.Printf("Error: %v", err)
		} else {
			log.Printf("Error: run failed: %v", err)
		}
		return domain.StatusFailed.ExitCode()
	}
	return rep.Status.ExitCode()
}
