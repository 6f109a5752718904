package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/deferred"
	"github.com/vk/atograph/internal/parser"
	"github.com/vk/atograph/internal/pipeline"
	"github.com/vk/atograph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	project  *registry.Project
	ws       *pipeline.Workspace
	compiler *pipeline.Compiler
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and workspace.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	projectDir := cfg.ProjectDir
	if projectDir == "" {
		projectDir = filepath.Dir(cfg.EntryPath)
	}
	project, err := registry.LoadProject(ctx, projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load project manifest: %w", err)
	}
	logger.Debug("Project manifest loaded.", "root", project.Root)

	var opts []pipeline.Option
	if cfg.RetypePolicy == "structural" {
		opts = append(opts, pipeline.WithRetypePolicy(deferred.RetypeStructural))
	}
	if cfg.MaxImportDepth > 0 {
		opts = append(opts, pipeline.WithMaxImportDepth(cfg.MaxImportDepth))
	}

	ws := pipeline.NewWorkspace()
	compiler := pipeline.NewCompiler(ws, parser.New(), registry.New(project), opts...)
	logger.Debug("Compiler workspace initialized.")

	return &App{
		outW:     outW,
		logger:   logger,
		project:  project,
		ws:       ws,
		compiler: compiler,
		config:   cfg,
	}, nil
}

// Compiler returns the application's compiler. This is primarily for testing.
func (a *App) Compiler() *pipeline.Compiler {
	return a.compiler
}
