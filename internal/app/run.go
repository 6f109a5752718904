package app

import (
	"context"
	"fmt"

	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/fsutil"
	"github.com/vk/atograph/internal/instance"
	"github.com/vk/atograph/internal/linker"
)

// Run executes one compile (plus instantiation when a root type was named),
// then hands off to the watch loop when watch mode is enabled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Watch {
		a.prewarm(ctx)
	}

	err := a.compileOnce(ctx)
	if a.config.Watch {
		if err != nil {
			// Watch mode keeps going after a failed build; the next file
			// change gets another chance.
			a.logger.Warn("Initial build failed, watching for changes.", "error", err)
		}
		return a.watch(ctx)
	}

	a.logger.Debug("App.Run method finished.")
	return err
}

// prewarm builds every project source concurrently so the first watched
// rebuild only pays for the changed file. Failures here are not fatal; the
// real compile reports them properly.
func (a *App) prewarm(ctx context.Context) {
	paths, err := fsutil.FindSources(a.project.Root)
	if err != nil {
		a.logger.Debug("Source discovery failed, skipping prewarm.", "error", err)
		return
	}
	if err := a.compiler.Prebuild(ctx, paths); err != nil {
		a.logger.Debug("Cache prewarm finished with errors.", "error", err)
	}
	a.logger.Debug("Cache prewarm complete.", "files", len(paths))
}

// compileOnce runs a full pipeline pass over the configured entry file and
// reports the outcome on the application writer.
func (a *App) compileOnce(ctx context.Context) error {
	rootName := a.config.RootName
	if rootName == "" {
		unit, err := a.compiler.Compile(ctx, a.config.EntryPath)
		a.report(unit, nil)
		if err != nil {
			return fmt.Errorf("compilation failed: %w", err)
		}
		return nil
	}

	design, unit, err := a.compiler.Build(ctx, a.config.EntryPath, rootName, nil)
	a.report(unit, design)
	if err != nil {
		return fmt.Errorf("build of %s failed: %w", rootName, err)
	}
	return nil
}

// report prints collected diagnostics and a short summary.
func (a *App) report(unit *linker.CompilationUnit, design *instance.Design) {
	if unit != nil {
		for _, d := range unit.Diags.All() {
			fmt.Fprintf(a.outW, "%s\n", d)
		}
	}
	if design != nil {
		for _, d := range design.Diags.All() {
			fmt.Fprintf(a.outW, "%s\n", d)
		}
		fmt.Fprintf(a.outW, "%s: %d instances, %d connections, %d nets\n",
			design.Root.Name, design.InstanceCount(), design.ConnectionCount(), len(design.Nets))
		return
	}
	if unit != nil {
		fmt.Fprintf(a.outW, "compiled %d files, %d types\n",
			len(unit.FileOrder), len(unit.AllTypes()))
	}
}
