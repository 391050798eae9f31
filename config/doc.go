// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads VANA runtime configuration from defaults, an optional YAML file,
// .env files and the process environment.
package config
