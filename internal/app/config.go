package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	EntryPath  string // .ato file to compile
	RootName   string // entrypoint type to instantiate; empty compiles only
	ProjectDir string // directory holding ato_project.hcl; defaults to the entry file's directory

	LogFormat      string
	LogLevel       string
	Watch          bool
	MaxImportDepth int
	RetypePolicy   string // "any" or "structural"
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.EntryPath == "" {
		return nil, errors.New("EntryPath is a required configuration field and cannot be empty")
	}
	if cfg.RetypePolicy != "" && cfg.RetypePolicy != "any" && cfg.RetypePolicy != "structural" {
		return nil, errors.New("RetypePolicy must be 'any' or 'structural'")
	}
	return &cfg, nil
}
