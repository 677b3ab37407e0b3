// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command gramgen is a CLI for the gramgen library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gramgen",
		Short: "Grammar-constrained code generation",
		Long:  "gramgen indexes a project, compiles a grammar from its symbols, and generates code that is guaranteed to satisfy the grammar's structural and type constraints.",
	}

	// Global flags.
	rootCmd.PersistentFlags().String("project", ".", "Project root directory")
	rootCmd.PersistentFlags().String("language", "", "Target language (go, typescript, javascript, python)")
	rootCmd.PersistentFlags().String("provider", "llamacpp", "Provider: bedrock, openai, or llamacpp")
	rootCmd.PersistentFlags().String("model", "", "Model ID (bedrock, openai)")
	rootCmd.PersistentFlags().String("region", "", "AWS region (bedrock)")
	rootCmd.PersistentFlags().String("profile", "", "AWS profile (bedrock)")
	rootCmd.PersistentFlags().String("api-key", "", "API key (openai)")
	rootCmd.PersistentFlags().String("base-url", "", "Server base URL (llamacpp, openai)")
	rootCmd.PersistentFlags().String("cache-dir", "", "Artifact directory (default <project>/.gramgen)")
	rootCmd.PersistentFlags().Int("max-repair-attempts", 3, "Repair budget per request")
	rootCmd.PersistentFlags().Int("max-tokens", 4096, "Maximum tokens for the provider response")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log pipeline activity to stderr")

	// Bind flags to viper.
	for _, name := range []string{
		"project", "language", "provider", "model", "region", "profile",
		"api-key", "base-url", "cache-dir", "max-repair-attempts",
		"max-tokens", "verbose",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	// Env vars: GRAMGEN_LANGUAGE, GRAMGEN_PROVIDER, etc.
	viper.SetEnvPrefix("GRAMGEN")
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".gramgen")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	// Add commands.
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print gramgen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gramgen %s\n", version)
		},
	}
}
