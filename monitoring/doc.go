// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitoring provides Prometheus metrics, aggregated health checks and rendered
// monitoring configuration for VANA deployments.
package monitoring
