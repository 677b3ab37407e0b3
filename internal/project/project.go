// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package project detects the version-control state of the directory
// being indexed. The pipeline records the head commit and dirty flag in
// snapshot metadata so cached artifacts can be tied to a tree state.
package project

import (
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// ErrNoGit is returned when the working directory is not inside a git
// repository.
var ErrNoGit = errors.New("not a git repository")

// Info describes the detected project state.
type Info struct {
	Root       string // Repository root (or the work dir when no repo)
	HeadCommit string // HEAD commit hash, empty on an unborn branch
	Dirty      bool   // Working tree has uncommitted changes
}

// Detect inspects workDir and its parents for a git repository and
// returns its state. Returns ErrNoGit when none is found; callers treat
// that as a plain directory, not a failure.
func Detect(workDir string) (*Info, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", workDir, err)
	}

	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}

	info := &Info{Root: abs}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	info.Root = wt.Filesystem.Root()

	head, err := repo.Head()
	if err == nil {
		info.HeadCommit = head.Hash().String()
	}
	// An unborn HEAD (fresh init, no commits) is not an error; the
	// commit hash just stays empty.

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}
	info.Dirty = !status.IsClean()

	return info, nil
}
