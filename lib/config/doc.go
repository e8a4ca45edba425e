// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the stream tools.
//
// Configuration comes from a single file named by either the
// ORCAROOT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no directory search. Files ending in
// .json or .jsonc are read as JSON with comments and trailing commas;
// anything else is YAML. Both use the same snake_case keys:
//
//	intake:
//	  buffer_words: 1048576
//	  poll_interval: 1s
//	  readiness_timeout: 1s
//	logging:
//	  verbosity: routine
//	  format: auto
//	decoders:
//	  bindings:
//	    - identity: ORKatrinFLTModel:KatrinFLT
//	      data_id: 0x00080000
//	status:
//	  file: ${HOME}/orcaroot-status.cbor
//	  interval: 10s
//
// Unknown keys are rejected. Values absent from the file keep their
// [Default]. ${VAR} and ${VAR:-default} are expanded in path fields.
//
// This package depends on no other project packages.
package config
