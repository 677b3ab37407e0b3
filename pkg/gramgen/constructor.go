// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package gramgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/petar-djukic/gramgen/internal/cache"
	"github.com/petar-djukic/gramgen/internal/generate"
	"github.com/petar-djukic/gramgen/internal/grammar"
	"github.com/petar-djukic/gramgen/internal/index"
	"github.com/petar-djukic/gramgen/internal/pipeline"
	"github.com/petar-djukic/gramgen/internal/project"
	"github.com/petar-djukic/gramgen/internal/provider"
	"github.com/petar-djukic/gramgen/internal/repair"
	"github.com/petar-djukic/gramgen/internal/validate"
	"github.com/petar-djukic/gramgen/pkg/types"
)

const defaultMaxTokens = 4096

// New validates the config, initializes the provider adapter, and wires
// the pipeline. It does not index the project; that happens on the first
// Generate (or an explicit Index call).
func New(cfg Config) (Gramgen, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	applyDefaults(&cfg)

	lang, err := types.ParseLanguage(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInit, err)
	}

	indexer, err := index.New(index.Config{
		Root:     cfg.ProjectDir,
		Language: lang,
		CacheDir: cfg.CacheDir,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// A plain directory is fine; snapshot metadata just goes unstamped.
	if info, err := project.Detect(cfg.ProjectDir); err == nil {
		indexer.SetProjectState(info.HeadCommit, info.Dirty)
	} else if !errors.Is(err, project.ErrNoGit) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	templates, err := cache.New(cfg.MaxCacheEntries, filepath.Join(cfg.CacheDir, "templates"), cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	compiler := grammar.NewCompiler(templates, cfg.Logger)
	generator := generate.New(adapter, generate.Config{
		MaxTokens: cfg.MaxTokens,
		Logger:    cfg.Logger,
	})
	repairer := repair.New(repair.Config{MaxAttempts: cfg.MaxRepairAttempts})

	runner := pipeline.NewRunner(indexer, compiler, templates, generator, repairer, cfg.Logger)
	service := pipeline.NewService(runner, pipeline.ServiceConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		RunTimeout:    cfg.RunTimeout,
		Logger:        cfg.Logger,
	})

	return &gramgenImpl{
		lang:     lang,
		indexer:  indexer,
		compiler: compiler,
		service:  service,
	}, nil
}

// gramgenImpl adapts the wired pipeline to the public Gramgen interface.
type gramgenImpl struct {
	lang     types.Language
	indexer  *index.Indexer
	compiler *grammar.Compiler
	service  *pipeline.Service
}

func (g *gramgenImpl) Index(ctx context.Context) (*IndexStats, error) {
	prev := g.indexer.Current()
	snap, changes, err := g.indexer.Index(ctx)
	if err != nil {
		return nil, err
	}
	return &IndexStats{
		Files:        len(snap.Hashes),
		Symbols:      len(snap.Symbols),
		SkippedFiles: len(snap.SkippedFiles),
		Changed:      len(changes.Changed),
		Added:        len(changes.Added),
		Removed:      len(changes.Removed),
		Unchanged:    prev != nil && changes.Empty(),
	}, nil
}

func (g *gramgenImpl) Generate(ctx context.Context, req types.GenerationRequest) (*Result, error) {
	req.Language = g.lang

	out := g.service.Run(ctx, req)

	res := &Result{
		RunID:      out.RunID,
		Success:    out.State == pipeline.StateDone,
		Repairs:    len(out.Attempts),
		TokensUsed: out.Usage,
	}
	if out.Result != nil {
		res.Text = out.Result.Text
		res.Provider = out.Result.Provider
		res.ConstraintApplied = out.Result.ConstraintApplied
	}
	if out.Report != nil && !out.Report.Pass {
		res.Violations = out.Report.Violations
	}
	return res, out.Err
}

func (g *gramgenImpl) Validate(ctx context.Context, text string, req types.GenerationRequest) (*types.ValidationReport, error) {
	req.Language = g.lang

	snap := g.indexer.Current()
	if snap == nil {
		var err error
		snap, _, err = g.indexer.Index(ctx)
		if err != nil {
			return nil, err
		}
	}

	tmpl, err := g.compiler.Compile(snap, req)
	if err != nil {
		return nil, err
	}
	return validate.Validate(text, tmpl, snap), nil
}

// newAdapter selects and initializes the provider adapter named in the
// config. Credentials pass straight through; they are never logged.
func newAdapter(cfg Config) (provider.Adapter, error) {
	switch cfg.Provider {
	case ProviderBedrock:
		return provider.NewBedrock(context.Background(), provider.BedrockConfig{
			ModelID: cfg.Model,
			Region:  cfg.Region,
			Profile: cfg.Profile,
		})
	case ProviderOpenAI:
		return provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case ProviderLlamaCpp:
		return provider.NewLlamaCpp(provider.LlamaCppConfig{
			BaseURL: cfg.BaseURL,
		})
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// validateConfig checks that required fields are present.
func validateConfig(cfg Config) error {
	if cfg.ProjectDir == "" {
		return fmt.Errorf("ProjectDir is required")
	}
	if info, err := os.Stat(cfg.ProjectDir); err != nil || !info.IsDir() {
		return fmt.Errorf("ProjectDir %q does not exist or is not a directory", cfg.ProjectDir)
	}
	if cfg.Language == "" {
		return fmt.Errorf("Language is required")
	}
	if cfg.Provider == "" {
		return fmt.Errorf("Provider is required")
	}
	switch cfg.Provider {
	case ProviderBedrock:
		if cfg.Model == "" || cfg.Region == "" {
			return fmt.Errorf("bedrock requires Model and Region")
		}
	case ProviderOpenAI:
		if cfg.Model == "" || cfg.APIKey == "" {
			return fmt.Errorf("openai requires Model and APIKey")
		}
	case ProviderLlamaCpp:
		if cfg.BaseURL == "" {
			return fmt.Errorf("llamacpp requires BaseURL")
		}
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return nil
}

// applyDefaults fills in zero-value fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.ProjectDir, ".gramgen")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
}
