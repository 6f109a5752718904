// Package registry is the module-registry collaborator: it resolves import
// paths to file locations against a project layout described by an HCL
// manifest, with a bundled standard-library directory as fallback.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/atograph/internal/ctxlog"
)

// ManifestName is the project manifest file looked up at the project root.
const ManifestName = "ato_project.hcl"

// Project describes one project's layout and feature opt-ins.
type Project struct {
	// Root is the absolute project root directory.
	Root string
	// Stdlib is the absolute bundled standard-library directory; may be
	// empty when the project bundles none.
	Stdlib string
	// Entries maps declared entrypoint names to their file and root type.
	Entries map[string]Entry
	// Experiments is the set of experiment names enabled project-wide.
	Experiments map[string]bool
}

// Entry is one declared build entrypoint.
type Entry struct {
	File string
	Type string
}

// manifestRoot mirrors the HCL manifest structure for decoding.
type manifestRoot struct {
	Paths       *manifestPaths       `hcl:"paths,block"`
	Entries     []manifestEntry      `hcl:"entry,block"`
	Experiments []manifestExperiment `hcl:"experiment,block"`
}

type manifestPaths struct {
	Root   string `hcl:"root,optional"`
	Stdlib string `hcl:"stdlib,optional"`
}

type manifestEntry struct {
	Name string `hcl:"name,label"`
	File string `hcl:"file"`
	Type string `hcl:"type"`
}

type manifestExperiment struct {
	Name string `hcl:"name,label"`
}

// LoadProject reads the manifest under dir. A missing manifest is not an
// error; the project defaults to dir as root with no stdlib.
func LoadProject(ctx context.Context, dir string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving project dir %s: %w", dir, err)
	}
	p := &Project{
		Root:        absDir,
		Entries:     make(map[string]Entry),
		Experiments: make(map[string]bool),
	}

	manifestPath := filepath.Join(absDir, ManifestName)
	if _, err := os.Stat(manifestPath); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("registry: no project manifest, using defaults", "dir", absDir)
			return p, nil
		}
		return nil, fmt.Errorf("reading manifest %s: %w", manifestPath, err)
	}

	hclFile, diags := hclparse.NewParser().ParseHCLFile(manifestPath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing manifest %s: %w", manifestPath, diags)
	}
	var root manifestRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding manifest %s: %w", manifestPath, diags)
	}

	if root.Paths != nil {
		if root.Paths.Root != "" {
			p.Root = filepath.Join(absDir, root.Paths.Root)
		}
		if root.Paths.Stdlib != "" {
			p.Stdlib = filepath.Join(absDir, root.Paths.Stdlib)
		}
	}
	for _, e := range root.Entries {
		p.Entries[e.Name] = Entry{File: filepath.Join(p.Root, e.File), Type: e.Type}
	}
	for _, x := range root.Experiments {
		p.Experiments[x.Name] = true
	}

	logger.Debug("registry: manifest loaded",
		"root", p.Root, "stdlib", p.Stdlib,
		"entries", len(p.Entries), "experiments", len(p.Experiments))
	return p, nil
}
