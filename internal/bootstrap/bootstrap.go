// Package bootstrap assembles the adapters and services shared by the CLI and
// the MCP server from a project's .layerforge.yaml and environment.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/layerforge/layerforge/internal/adapters/outbound/config"
	"github.com/layerforge/layerforge/internal/adapters/outbound/detector"
	"github.com/layerforge/layerforge/internal/adapters/outbound/gitinfo"
	"github.com/layerforge/layerforge/internal/adapters/outbound/history"
	"github.com/layerforge/layerforge/internal/adapters/outbound/llm"
	"github.com/layerforge/layerforge/internal/adapters/outbound/parser"
	"github.com/layerforge/layerforge/internal/adapters/outbound/sandbox"
	"github.com/layerforge/layerforge/internal/adapters/outbound/scanner"
	"github.com/layerforge/layerforge/internal/adapters/outbound/taskstore"
	"github.com/layerforge/layerforge/internal/application"
	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/logging"
)

// ModelEnv overrides model.provider (and optionally model.name) when set.
const ModelEnv = "LAYERFORGE_MODEL"

// Options configures New.
type Options struct {
	ProjectPath string
	// ModelOverride is provider[:name]. For the scripted provider the part
	// after the colon is the script path.
	ModelOverride string
	// Verbose mirrors log records to Stderr.
	Verbose bool
	Stderr  io.Writer
}

// App holds the wired components for one project.
type App struct {
	ProjectPath string
	Config      domain.ProjectConfig
	Logger      *slog.Logger
	Scanner     *application.ScanService
	History     *history.FileHistory
	Git         *gitinfo.GitInfoAdapter

	mu      sync.Mutex
	model   domain.ChatModel
	tasks   *taskstore.Store
	closers []io.Closer
}

// LoadEnv reads .env from the working directory and then from projectPath.
// Variables already set in the process win.
func LoadEnv(projectPath string) {
	_ = godotenv.Load()
	if projectPath != "" {
		_ = godotenv.Load(filepath.Join(projectPath, ".env"))
	}
}

// New loads configuration and builds the components that need no model.
func New(opts Options) (*App, error) {
	path := opts.ProjectPath
	if path == "" {
		path = "."
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	LoadEnv(absPath)

	cfg, err := config.New().Load(absPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	override := opts.ModelOverride
	if override == "" {
		override = os.Getenv(ModelEnv)
	}
	if err := ApplyModelOverride(&cfg, override); err != nil {
		return nil, err
	}

	logOpts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Root: absPath}
	if !isDir(absPath) {
		// Never create directories inside a project that does not exist.
		logOpts.File = ""
	}
	if opts.Verbose {
		logOpts.Stderr = opts.Stderr
		if logOpts.Stderr == nil {
			logOpts.Stderr = os.Stderr
		}
		logOpts.Level = "debug"
	}
	logger, logCloser, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}

	return &App{
		ProjectPath: absPath,
		Config:      cfg,
		Logger:      logger,
		Scanner: application.NewScanService(
			scanner.New(scanner.WithMaxFileSize(cfg.Scan.MaxFileSize)),
			detector.New(),
			parser.New(),
			logger.With("component", "scan"),
		),
		History: history.New(),
		Git:     gitinfo.New(".layerforge/", sandbox.BackupDirName+"/"),
		closers: []io.Closer{logCloser},
	}, nil
}

// ApplyModelOverride applies provider[:name] to cfg and revalidates it.
func ApplyModelOverride(cfg *domain.ProjectConfig, override string) error {
	override = strings.TrimSpace(override)
	if override == "" {
		return nil
	}
	provider, name, hasName := strings.Cut(override, ":")
	cfg.Model.Provider = provider
	if hasName {
		if provider == "scripted" {
			cfg.Model.Script = name
		} else {
			cfg.Model.Name = name
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: model override %q: %v", domain.ErrValue, override, err)
	}
	return nil
}

// Model builds the configured chat model once.
func (a *App) Model(ctx context.Context) (domain.ChatModel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		return a.model, nil
	}
	m, err := llm.New(ctx, a.Config.Model, a.Logger.With("component", "llm"))
	if err != nil {
		return nil, fmt.Errorf("creating model: %w", err)
	}
	a.model = m
	return m, nil
}

// Decider returns a decision service over the configured model.
func (a *App) Decider(ctx context.Context) (*application.DecisionService, error) {
	m, err := a.Model(ctx)
	if err != nil {
		return nil, err
	}
	return application.NewDecisionService(m, a.Logger.With("component", "decide")), nil
}

// Tasks opens the project's task store. It fails when the project directory
// does not exist.
func (a *App) Tasks() (*taskstore.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tasks != nil {
		return a.tasks, nil
	}
	if !isDir(a.ProjectPath) {
		return nil, fmt.Errorf("project %s: %w", a.ProjectPath, domain.ErrNotFound)
	}
	s, err := taskstore.Open(filepath.Join(a.ProjectPath, taskstore.DefaultFile))
	if err != nil {
		return nil, err
	}
	a.tasks = s
	a.closers = append(a.closers, s)
	return s, nil
}

// NewTool is the sandbox factory handed to the pipeline.
func (a *App) NewTool(root string) (domain.FileTool, error) {
	tool, err := sandbox.New(root, sandbox.Options{
		BackupPrefix:   a.Config.Sandbox.BackupPrefix,
		LegacyEncoding: a.Config.Sandbox.LegacyEncoding,
		Logger:         a.Logger,
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// Pipeline wires the coordinator. The task store is optional: when it cannot
// be opened the run proceeds without status rows.
func (a *App) Pipeline(ctx context.Context) (*application.PipelineService, error) {
	m, err := a.Model(ctx)
	if err != nil {
		return nil, err
	}
	deps := application.PipelineDeps{
		Scanner: a.Scanner,
		Decider: application.NewDecisionService(m, a.Logger.With("component", "decide")),
		Orchestrator: application.NewOrchestrator(m, application.OrchestratorOptions{
			MaxTurns:        a.Config.Model.MaxTurns,
			MaxContentBytes: a.Config.Sandbox.MaxContentBytes,
			Logger:          a.Logger.With("component", "orchestrator"),
		}),
		NewTool:    a.NewTool,
		ScanConfig: a.Config.Scan,
		Git:        a.Git,
		History:    a.History,
		Logger:     a.Logger.With("component", "pipeline"),
	}
	if store, err := a.Tasks(); err == nil {
		deps.Recorder = store
	} else {
		a.Logger.Debug("task store unavailable", "error", err)
	}
	return application.NewPipelineService(deps), nil
}

// Close releases the task store and the log file.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.tasks = nil
	return errors.Join(errs...)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
