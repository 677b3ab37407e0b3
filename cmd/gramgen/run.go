// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/gramgen/pkg/gramgen"
	"github.com/petar-djukic/gramgen/pkg/types"
)

// newGenerateCmd creates the "generate" command.
func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a constrained declaration",
		Long:  "Generate sends the intent to the configured provider under a grammar compiled from the project's symbols, validates the candidate, and repairs it up to the configured budget.",
		RunE:  runGenerate,
	}

	cmd.Flags().StringP("intent", "i", "", "Natural-language task description (required)")
	cmd.Flags().String("construct", "function", "Target construct: function, method, class, interface, variable")
	cmd.Flags().StringSlice("scope", nil, "Symbol names to admit into scope (default: auto by rank)")
	cmd.Flags().String("signature", "", "Pinned target signature, e.g. 'add(a: number, b: number): number'")
	cmd.MarkFlagRequired("intent")

	return cmd
}

// runGenerate executes the generation task.
func runGenerate(cmd *cobra.Command, args []string) error {
	intent, _ := cmd.Flags().GetString("intent")
	constructName, _ := cmd.Flags().GetString("construct")
	scope, _ := cmd.Flags().GetStringSlice("scope")
	signature, _ := cmd.Flags().GetString("signature")

	construct, err := types.ParseConstructKind(constructName)
	if err != nil {
		return err
	}

	req := types.GenerationRequest{
		Intent:            intent,
		Construct:         construct,
		ScopeSymbols:      scope,
		MaxRepairAttempts: viper.GetInt("max-repair-attempts"),
	}
	if signature != "" {
		sig, err := types.ParseSignature(signature)
		if err != nil {
			return fmt.Errorf("parsing signature: %w", err)
		}
		req.TargetSignature = sig
	}

	g, err := gramgen.New(buildConfig())
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := g.Generate(ctx, req)
	if result != nil {
		printJSON(result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newIndexCmd creates the "index" command.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the project index",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := gramgen.New(buildConfig())
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			stats, err := g.Index(ctx)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			printJSON(stats)
			return nil
		},
	}
}

// newInitCmd creates the "init" command.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter .gramgen.yaml into the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := viper.GetString("project")
			path := filepath.Join(projectDir, ".gramgen.yaml")

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}

			starter := "" +
				"# gramgen configuration\n" +
				"language: " + viper.GetString("language") + "\n" +
				"provider: " + viper.GetString("provider") + "\n" +
				"model: \"\"\n" +
				"region: \"\"\n" +
				"base-url: \"\"\n" +
				"max-repair-attempts: 3\n"

			if err := os.WriteFile(path, []byte(starter), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

// buildConfig assembles the library config from viper's merged sources.
func buildConfig() gramgen.Config {
	cfg := gramgen.Config{
		ProjectDir:        viper.GetString("project"),
		Language:          viper.GetString("language"),
		Provider:          viper.GetString("provider"),
		Model:             viper.GetString("model"),
		Region:            viper.GetString("region"),
		Profile:           viper.GetString("profile"),
		APIKey:            viper.GetString("api-key"),
		BaseURL:           viper.GetString("base-url"),
		CacheDir:          viper.GetString("cache-dir"),
		MaxRepairAttempts: viper.GetInt("max-repair-attempts"),
		MaxTokens:         viper.GetInt("max-tokens"),
	}
	if viper.GetBool("verbose") {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return cfg
}

// printJSON outputs a result as indented JSON to stdout.
func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling result: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
