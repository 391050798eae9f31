// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package xiter provides helpers for building the [iter.Seq2] streams returned by models.
package xiter
