// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agents builds the VANA agent hierarchy on the Agent Development Kit.
//
// An orchestrator named vana delegates to five specialists (architecture, UI, DevOps, QA
// and research). Agents are declared as [AgentSpec] values and assembled by [Build] with the
// tools of a [Toolbox]. [Runner] drives conversations against the assembled [System].
package agents
