// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package gramgen defines the public interface for gramgen, a
// grammar-constrained code generation library. Generated declarations
// are decoded under (or validated against) a grammar compiled from the
// project's own symbols, so a returned candidate either satisfies the
// constraints or comes back with a structured violation report.
package gramgen

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// Error types for the public API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrProviderInit  = errors.New("provider initialization failed")
)

// Provider names accepted in Config.Provider.
const (
	ProviderBedrock  = "bedrock"
	ProviderOpenAI   = "openai"
	ProviderLlamaCpp = "llamacpp"
)

// Config configures a Gramgen instance.
type Config struct {
	ProjectDir string // Project root to index (required)
	Language   string // Target language: go, typescript, javascript, python (required)

	Provider string // bedrock, openai, or llamacpp (required)
	Model    string // Model ID for bedrock/openai
	Region   string // AWS region (bedrock)
	Profile  string // AWS profile (bedrock, optional)
	APIKey   string // API key (openai); treated as opaque, never logged
	BaseURL  string // Server/base URL (llamacpp required, openai optional)

	CacheDir          string        // Artifact directory (default <ProjectDir>/.gramgen)
	MaxCacheEntries   int           // Template LRU bound (default 256)
	MaxRepairAttempts int           // Repair budget per request (default 3)
	MaxConcurrent     int           // In-flight run ceiling (default 4)
	RunTimeout        time.Duration // Wall-clock budget per run (default 10m)
	MaxTokens         int           // Response token ceiling (default 4096)

	Logger *slog.Logger // Optional; nil discards
}

// Result holds the outcome of one Generate invocation.
type Result struct {
	RunID             string            // Unique run identifier
	Success           bool              // Candidate satisfied all constraints
	Text              string            // Final candidate text
	Provider          string            // Adapter that produced it
	ConstraintApplied bool              // Grammar was enforced during decoding
	Repairs           int               // Repair iterations performed
	Violations        []types.Violation // Remaining violations when Success is false
	TokensUsed        types.TokenUsage  // Cumulative usage across the run's calls
}

// IndexStats summarizes one index pass.
type IndexStats struct {
	Files        int  // Candidate files in the snapshot
	Symbols      int  // Declared symbols
	SkippedFiles int  // Files that failed to parse
	Changed      int  // Symbols changed since the previous snapshot
	Added        int  // Symbols added
	Removed      int  // Symbols removed
	Unchanged    bool // True when the tree matched the previous snapshot
}

// Gramgen generates grammar-constrained code against one project.
type Gramgen interface {
	// Index builds or refreshes the project's symbol index. Generate
	// indexes on demand; calling Index first just front-loads the work.
	Index(ctx context.Context) (*IndexStats, error)

	// Generate drives a request through the full pipeline: index,
	// compile the grammar, call the provider, validate, and repair up
	// to the configured budget. A non-nil Result is returned even on
	// failure, carrying the last candidate and its violations.
	Generate(ctx context.Context, req types.GenerationRequest) (*Result, error)

	// Validate checks candidate text against the grammar the request
	// would compile, without calling a provider.
	Validate(ctx context.Context, text string, req types.GenerationRequest) (*types.ValidationReport, error)
}
