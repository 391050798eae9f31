// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox executes untrusted code under resource limits.
//
// A [Monitor] polls a [Sampler] and cancels the watched work as soon as a [Limits] ceiling is
// exceeded. [LocalExecutor] runs code as a child process watched by a Monitor and
// [ContainerExecutor] runs it inside a Docker container with kernel-enforced limits.
package sandbox
