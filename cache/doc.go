// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache provides a bounded LRU cache with per-entry expiry and hit/miss statistics,
// plus a [Registry] holding the named caches (search, document, analysis) used by VANA tools.
package cache
