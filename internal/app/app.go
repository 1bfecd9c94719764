package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ghp-go/internal/config"
	"ghp-go/internal/gerrit"
	"ghp-go/internal/ghp"
	"ghp-go/internal/gitrepo"
	"ghp-go/internal/mirror"
	"ghp-go/internal/render"
	"ghp-go/internal/tracker"
)

// Options carries command-line overrides applied on top of the config
// file. Zero values leave the config value in effect.
type Options struct {
	GerritURL string
	Username  string
	// Password is the resolved Gerrit credential; resolution (flag,
	// prompt, secret store) happens in the CLI layer.
	Password string

	Query     string
	Limit     int
	OutputDir string
	RepoPath  string
	Branch    string

	// ExportOnly writes artifacts into OutputDir without any git
	// repository or archive tracking.
	ExportOnly  bool
	NoVerifySSL bool
}

// App is the application layer between the CLI and the sync service. It
// constructs all dependencies from config, runs the pipeline, and manages
// resource lifecycles on Close.
type App struct {
	cfg     *config.Config
	archive config.ArchiveConfig

	tracker ghp.ArchiveTracker
	git     *gitrepo.GitWriter
	service *ghp.SyncService
	mirror  mirror.Mirror
	logger  ghp.Logger
	logFile *os.File

	exportOnly bool
	runID      string
}

// NewApp creates a fully wired App from the given config and overrides.
// The caller must call Close when done.
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	archive := resolveArchive(cfg.Archive, opts)
	gerritCfg := resolveGerrit(cfg.Gerrit, opts)
	if gerritCfg.URL == "" {
		logFile.Close()
		return nil, fmt.Errorf("gerrit URL not configured; pass --gerrit-url or set gerrit.url in the config")
	}

	source := gerrit.NewClient(gerritCfg.URL, gerrit.Options{
		Username:           gerritCfg.Username,
		Password:           opts.Password,
		InsecureSkipVerify: !gerritCfg.SSLVerificationEnabled(),
		Timeout:            time.Duration(gerritCfg.TimeoutSeconds) * time.Second,
		RequestsPerSecond:  gerritCfg.RequestsPerSecond,
	}, logger)

	renderer, err := render.New()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	app := &App{
		cfg:        cfg,
		archive:    archive,
		logger:     logger,
		logFile:    logFile,
		exportOnly: opts.ExportOnly,
		runID:      runID,
	}

	var writer ghp.RepoWriter
	if opts.ExportOnly {
		app.tracker = tracker.NewMemoryTracker()
		writer = gitrepo.NewDirWriter(archive.OutputDir)
	} else {
		app.tracker, err = tracker.NewTrackerFromConfig(cfg.Database)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("creating archive tracker: %w", err)
		}

		manifestPath := filepath.Join(archive.RepoPath, "metadata", "archive_manifest.json")
		seeded, err := tracker.SeedFromManifest(app.tracker, manifestPath)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("rebuilding tracker from manifest: %w", err)
		}
		if seeded > 0 {
			logger.Info("rebuilt tracker from committed manifest", "entries", seeded)
		}

		app.git, err = gitrepo.NewGitWriter(archive.RepoPath, gitrepo.Options{
			Branch: archive.Branch,
		}, ghp.RealClock{}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("opening archive repository: %w", err)
		}
		writer = app.git
	}

	app.mirror, err = mirror.NewMirrorFromConfig(context.Background(), cfg.Mirror)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	app.service = ghp.NewSyncService(
		source, app.tracker, renderer, writer, logger,
		ghp.RealClock{}, ghp.RealSleeper{}, ghp.UUIDGenerator{},
		ghp.SyncOptions{
			Workers:  cfg.Sync.Workers,
			PageSize: cfg.Sync.PageSize,
			Backoff:  backoffFromConfig(cfg.Sync),
		})

	return app, nil
}

// Preserve runs one archival pass and, after a successful commit, pushes
// a bundle of the archive tree to the configured mirror.
func (a *App) Preserve(ctx context.Context) (*ghp.SyncRun, error) {
	run, err := a.service.Run(ctx, a.archive.Query, a.archive.Limit)
	if err != nil {
		return run, err
	}

	if run.Succeeded() && !a.exportOnly && a.mirror != nil && run.CommitID != "" {
		name := fmt.Sprintf("gerrit-history-%s.tar.gz", a.runID)
		if err := mirror.PublishTree(ctx, a.mirror, a.archive.RepoPath, name); err != nil {
			// Mirroring is best-effort; the commit already happened.
			a.logger.Warn("mirror upload failed", "target", a.mirror.Name(), "err", err)
		} else {
			a.logger.Info("mirrored archive bundle", "target", a.mirror.Name(), "name", name)
		}
	}
	return run, nil
}

// Close releases the tracker, repository and log file.
func (a *App) Close() error {
	var firstErr error
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			firstErr = fmt.Errorf("closing tracker: %w", err)
		}
	}
	if a.git != nil {
		if err := a.git.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing repository: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// resolveArchive applies CLI overrides to the configured archive settings.
func resolveArchive(cfg config.ArchiveConfig, opts Options) config.ArchiveConfig {
	if opts.Query != "" {
		cfg.Query = opts.Query
	}
	if opts.Limit > 0 {
		cfg.Limit = opts.Limit
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if opts.RepoPath != "" {
		cfg.RepoPath = opts.RepoPath
	}
	if opts.Branch != "" {
		cfg.Branch = opts.Branch
	}
	return cfg
}

// resolveGerrit applies CLI overrides to the configured Gerrit settings.
func resolveGerrit(cfg config.GerritConfig, opts Options) config.GerritConfig {
	if opts.GerritURL != "" {
		cfg.URL = opts.GerritURL
	}
	if opts.Username != "" {
		cfg.Username = opts.Username
	}
	if opts.NoVerifySSL {
		verify := false
		cfg.VerifySSL = &verify
	}
	return cfg
}

func backoffFromConfig(cfg config.SyncConfig) ghp.Backoff {
	b := ghp.DefaultBackoff()
	if cfg.Retries > 0 {
		b.Retries = cfg.Retries
	}
	if cfg.BackoffInitialMS > 0 {
		b.Initial = time.Duration(cfg.BackoffInitialMS) * time.Millisecond
	}
	if cfg.BackoffMaxMS > 0 {
		b.Max = time.Duration(cfg.BackoffMaxMS) * time.Millisecond
	}
	return b
}
