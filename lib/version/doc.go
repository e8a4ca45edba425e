// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// orcaroot-stream binary.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//
// [Version] is the semantic version string, set manually for releases.
// The injected values default to "unknown" during development builds
// and test runs.
//
// Formatting functions produce human-readable version strings:
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-10-18T...)" for status snapshots
//   - [Full] -- Info plus Go version and GOOS/GOARCH, for --version
//   - [Commit] -- just the git SHA
package version
